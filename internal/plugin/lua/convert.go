// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package lua

import (
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// luaValue converts a Go value to its Lua representation. Structs pass
// through a JSON round trip, so payload types surface in scripts with
// their json tag names.
func luaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			L.SetField(t, k, luaValue(L, item))
		}
		return t
	case map[string]string:
		t := L.NewTable()
		for k, item := range val {
			L.SetField(t, k, lua.LString(item))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, item := range val {
			t.Append(luaValue(L, item))
		}
		return t
	case []string:
		t := L.NewTable()
		for _, item := range val {
			t.Append(lua.LString(item))
		}
		return t
	default:
		if b, err := json.Marshal(val); err == nil {
			var generic any
			if err := json.Unmarshal(b, &generic); err == nil {
				// A round trip of an unhandled scalar would recurse forever.
				if _, again := generic.(map[string]any); again {
					return luaValue(L, generic)
				}
				if _, again := generic.([]any); again {
					return luaValue(L, generic)
				}
			}
		}
		return lua.LString(fmt.Sprint(val))
	}
}

// goValue converts a Lua value back to Go. Tables with sequential
// numeric keys become slices, everything else becomes a string-keyed
// map.
func goValue(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, goValue(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, item lua.LValue) {
			out[k.String()] = goValue(item)
		})
		return out
	default:
		return val.String()
	}
}
