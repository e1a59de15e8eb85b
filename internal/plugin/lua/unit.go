// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package lua

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/quillcms/quill/internal/plugin"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

// Host builds units from lua manifests. The entry script is parsed and
// compiled once at build time; every hook invocation then runs the
// compiled chunk in a fresh sandboxed state.
type Host struct {
	factory *StateFactory
	log     *slog.Logger
}

var _ plugin.UnitBuilder = (*Host)(nil)

// HostOption configures the Host.
type HostOption func(*Host)

// WithLogger sets the host's logger.
func WithLogger(log *slog.Logger) HostOption {
	return func(h *Host) {
		h.log = log
	}
}

// NewHost creates a Lua plugin host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		factory: NewStateFactory(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Build reads and compiles the manifest's entry script. Compilation
// catches syntax errors at load time; nothing runs until a bound hook
// fires.
func (h *Host) Build(_ context.Context, manifest *plugin.Manifest, dir string) (quill.Unit, error) {
	errb := oops.In("lua").With("plugin", manifest.Name).With("operation", "build")

	entry := manifest.Lua.Entry
	entryPath := filepath.Join(dir, entry)
	code, err := os.ReadFile(filepath.Clean(entryPath))
	if err != nil {
		return nil, errb.With("path", entryPath).Wrapf(err, "read entry script")
	}

	chunk, err := parse.Parse(strings.NewReader(string(code)), entry)
	if err != nil {
		return nil, errb.With("entry", entry).Hint("syntax error").Wrap(err)
	}
	proto, err := lua.Compile(chunk, entry)
	if err != nil {
		return nil, errb.With("entry", entry).Wrapf(err, "compile entry script")
	}

	return &Unit{
		manifest: manifest,
		dir:      dir,
		proto:    proto,
		factory:  h.factory,
		log:      h.log.With("plugin", manifest.Name),
	}, nil
}

// Unit is a script plugin. Its hook handlers are declared in the
// manifest's lua.bindings; each invocation executes the named global
// function in a fresh sandboxed state with the quill.* module
// registered.
type Unit struct {
	manifest *plugin.Manifest
	dir      string
	proto    *lua.FunctionProto
	factory  *StateFactory
	log      *slog.Logger

	mu   sync.Mutex
	host quill.Host
}

var _ quill.Unit = (*Unit)(nil)

// Info reports the manifest identity.
func (u *Unit) Info() quill.Info {
	return quill.Info{
		Name:        u.manifest.Name,
		Version:     u.manifest.Version,
		Description: u.manifest.Description,
		Author:      u.manifest.Author,
	}
}

// Activate registers every declared binding with the host.
func (u *Unit) Activate(_ context.Context, host quill.Host) error {
	u.mu.Lock()
	u.host = host
	u.mu.Unlock()

	bindings := u.manifest.Lua.Bindings
	if len(bindings) == 0 {
		u.log.Warn("lua plugin declares no hook bindings")
		return nil
	}

	binder := host.Hooks()
	for _, b := range bindings {
		var err error
		switch b.Kind {
		case "action":
			_, err = binder.OnAction(b.Hook, b.Function, u.action(b.Function), quill.WithPriority(b.Priority))
		case "filter":
			_, err = binder.OnFilter(b.Hook, b.Function, u.filter(b.Function), quill.WithPriority(b.Priority))
		}
		if err != nil {
			return oops.In("lua").
				With("plugin", u.manifest.Name).
				With("hook", b.Hook).
				With("function", b.Function).
				Wrapf(err, "bind hook handler")
		}
	}
	return nil
}

// Deactivate keeps the Host facade in place: the registry drains
// in-flight dispatches after this returns, and those invocations may
// still read settings or log.
func (u *Unit) Deactivate(context.Context, quill.Host) error {
	return nil
}

func (u *Unit) action(fnName string) quill.ActionFunc {
	return func(ctx context.Context, ev hook.Event) error {
		_, err := u.call(ctx, fnName, ev)
		return err
	}
}

// filter wraps a script function as a filter handler. A nil return
// from the script leaves the payload unchanged.
func (u *Unit) filter(fnName string) quill.FilterFunc {
	return func(ctx context.Context, ev hook.Event) (any, error) {
		out, err := u.call(ctx, fnName, ev)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return ev.Payload, nil
		}
		return out, nil
	}
}

// call runs one script function in a fresh sandboxed state.
func (u *Unit) call(ctx context.Context, fnName string, ev hook.Event) (any, error) {
	errb := oops.In("lua").With("plugin", u.manifest.Name).With("function", fnName).With("hook", ev.Hook)

	u.mu.Lock()
	host := u.host
	u.mu.Unlock()

	L, err := u.factory.NewState(ctx)
	if err != nil {
		return nil, errb.Wrapf(err, "create state")
	}
	defer L.Close()

	L.SetContext(ctx)
	if host != nil {
		newHostFuncs(u.manifest.Name, host).register(L)
	}

	L.Push(L.NewFunctionFromProto(u.proto))
	if err := L.PCall(0, 0, nil); err != nil {
		return nil, errb.Wrapf(err, "run entry script")
	}

	fn := L.GetGlobal(fnName)
	if fn.Type() != lua.LTFunction {
		return nil, errb.New("script does not define the bound function")
	}

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, u.eventTable(L, ev)); err != nil {
		return nil, errb.Wrap(err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return goValue(ret), nil
}

func (u *Unit) eventTable(L *lua.LState, ev hook.Event) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(ev.ID.String()))
	L.SetField(t, "hook", lua.LString(ev.Hook))
	L.SetField(t, "kind", lua.LString(ev.Kind.String()))
	L.SetField(t, "time", lua.LNumber(ev.Time.Unix()))
	L.SetField(t, "payload", luaValue(L, ev.Payload))
	return t
}
