// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package lua

import (
	"html"
	"log/slog"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/quillcms/quill/pkg/quill"
)

// hostFuncs exposes the quill.* module to one plugin's scripts. The
// functions close over the plugin's Host facade, so settings reads are
// already scoped and log lines already carry the plugin name.
type hostFuncs struct {
	plugin   string
	log      *slog.Logger
	settings quill.Settings
}

func newHostFuncs(plugin string, host quill.Host) *hostFuncs {
	return &hostFuncs{
		plugin:   plugin,
		log:      host.Logger(),
		settings: host.Settings(),
	}
}

// register adds the quill module to a Lua state:
//
//	quill.log(level, message)  -- debug|info|warn|error
//	quill.setting(key)         -- configured value or nil
//	quill.new_id()             -- fresh ULID string
//	quill.html_escape(s)       -- HTML-escaped copy of s
func (f *hostFuncs) register(ls *lua.LState) {
	mod := ls.NewTable()
	ls.SetField(mod, "log", ls.NewFunction(f.logFn()))
	ls.SetField(mod, "setting", ls.NewFunction(f.settingFn()))
	ls.SetField(mod, "new_id", ls.NewFunction(f.newIDFn()))
	ls.SetField(mod, "html_escape", ls.NewFunction(f.htmlEscapeFn()))
	ls.SetGlobal("quill", mod)
}

func (f *hostFuncs) logFn() lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		message := L.CheckString(2)

		logger := f.log
		if logger == nil {
			logger = slog.Default().With("plugin", f.plugin)
		}
		switch level {
		case "debug":
			logger.Debug(message)
		case "info":
			logger.Info(message)
		case "warn":
			logger.Warn(message)
		case "error":
			logger.Error(message)
		default:
			logger.Info(message)
		}
		return 0
	}
}

func (f *hostFuncs) settingFn() lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)

		if f.settings == nil {
			L.Push(lua.LNil)
			return 1
		}
		v, ok := f.settings.Get(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(luaValue(L, v))
		return 1
	}
}

func (f *hostFuncs) newIDFn() lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LString(ulid.Make().String()))
		return 1
	}
}

func (f *hostFuncs) htmlEscapeFn() lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(lua.LString(html.EscapeString(L.CheckString(1))))
		return 1
	}
}
