// Package lua runs script plugins in sandboxed interpreter states.
package lua

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// library pairs a Lua stdlib name with its loader.
type library struct {
	name string
	open lua.LGFunction
}

// sandboxLibraries is the whitelist scripts get: base, table, string,
// math. os, io, debug, and package stay out.
var sandboxLibraries = []library{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// strippedGlobals are base functions removed after the base library
// loads. Each one reaches the filesystem or executes arbitrary chunks.
var strippedGlobals = []string{"dofile", "loadfile", "loadstring", "load"}

// StateFactory creates sandboxed Lua states.
type StateFactory struct {
	libraries []library
}

// NewStateFactory creates a factory producing states with the sandbox
// whitelist.
func NewStateFactory() *StateFactory {
	return &StateFactory{libraries: sandboxLibraries}
}

// NewState builds a fresh state carrying only the whitelisted
// libraries, with dofile, loadfile, loadstring, and load removed.
func (f *StateFactory) NewState(_ context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range f.libraries {
		if err := openLibrary(L, lib); err != nil {
			L.Close()
			return nil, err
		}
	}
	for _, name := range strippedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L, nil
}

func openLibrary(L *lua.LState, lib library) error {
	err := L.CallByParam(lua.P{
		Fn:      L.NewFunction(lib.open),
		NRet:    0,
		Protect: true,
	}, lua.LString(lib.name))
	if err != nil {
		return fmt.Errorf("failed to open library %s: %w", lib.name, err)
	}
	return nil
}
