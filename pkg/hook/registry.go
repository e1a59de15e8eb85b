// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package hook

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("quill/hook")

// entry is a registered handler. The registry holds the only
// reference; callers keep at most the ID.
type entry struct {
	id       ulid.ULID
	hook     string
	owner    string
	name     string
	kind     Kind
	priority int
	seq      uint64
	fn       HandlerFunc
}

// dispatchToken marks one in-flight dispatch on a hook. UnregisterAll
// waits on the tokens present at removal time so a plugin's handlers
// cannot run after it returns.
type dispatchToken struct {
	done chan struct{}
}

// hookState tracks the ordered handler list and in-flight dispatches
// for one hook.
type hookState struct {
	entries  []*entry // sorted by (priority, seq)
	inflight []*dispatchToken
}

// Registry is the process-wide hook table. The host constructs exactly
// one at startup and hands plugins a bound facade.
// It is thread-safe for concurrent access.
type Registry struct {
	ns      *Namespace
	log     *slog.Logger
	timeout time.Duration // per-handler budget, 0 = unbounded

	mu    sync.Mutex
	hooks map[string]*hookState
	ids   map[ulid.ULID]*entry
	seq   uint64
}

// Option configures a Registry during construction.
type Option func(*Registry)

// WithLogger sets the logger used for registration and dispatch
// events. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithHandlerTimeout bounds each handler invocation with a context
// deadline. Handlers that ignore their context still stall the
// dispatching goroutine; the deadline is cooperative.
func WithHandlerTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry creates a hook registry over the given namespace.
func NewRegistry(ns *Namespace, opts ...Option) (*Registry, error) {
	if ns == nil {
		return nil, ErrNilNamespace
	}
	r := &Registry{
		ns:    ns,
		log:   slog.Default(),
		hooks: make(map[string]*hookState),
		ids:   make(map[ulid.ULID]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Namespace returns the namespace the registry dispatches against.
func (r *Registry) Namespace() *Namespace {
	return r.ns
}

// Register adds a handler to a hook. The hook must exist in the
// namespace, the declared kind must match the definition, and the
// (owner, hook, handler name) triple must be unused unless the hook
// allows duplicates. A rejected registration leaves the registry
// unchanged.
func (r *Registry) Register(e Entry) (ulid.ULID, error) {
	if e.Fn == nil {
		return ulid.ULID{}, ErrNilHandler
	}
	def, ok := r.ns.Lookup(e.Hook)
	if !ok {
		return ulid.ULID{}, ErrUnknownHook(e.Hook)
	}
	if e.Kind != def.Kind {
		return ulid.ULID{}, ErrKindMismatch(e.Hook, def.Kind, e.Kind)
	}

	priority := e.Priority
	if priority == 0 {
		priority = DefaultPriority
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.hooks[e.Hook]
	if st == nil {
		st = &hookState{}
		r.hooks[e.Hook] = st
	}

	if !def.AllowDuplicates {
		for _, existing := range st.entries {
			if existing.owner == e.Owner && existing.name == e.Name {
				return ulid.ULID{}, ErrDuplicateRegistration(e.Owner, e.Hook, e.Name)
			}
		}
	}

	r.seq++
	ent := &entry{
		id:       ulid.Make(),
		hook:     e.Hook,
		owner:    e.Owner,
		name:     e.Name,
		kind:     e.Kind,
		priority: priority,
		seq:      r.seq,
		fn:       e.Fn,
	}

	// Insert before the first higher-priority entry. Equal priorities
	// keep registration order because seq only grows.
	idx := sort.Search(len(st.entries), func(i int) bool {
		return st.entries[i].priority > priority
	})
	st.entries = append(st.entries, nil)
	copy(st.entries[idx+1:], st.entries[idx:])
	st.entries[idx] = ent

	r.ids[ent.id] = ent
	RegisteredHandlers.WithLabelValues(e.Hook, e.Kind.String()).Inc()

	r.log.Debug("hook handler registered",
		"hook", e.Hook,
		"plugin", e.Owner,
		"handler", e.Name,
		"priority", priority,
		"handler_id", ent.id.String())
	return ent.id, nil
}

// Unregister removes a single handler by ID. Unknown IDs are a no-op.
// It does not wait for in-flight dispatches; a dispatch that already
// snapshotted the handler list may still invoke the handler once.
func (r *Registry) Unregister(id ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.ids[id]
	if !ok {
		return
	}
	delete(r.ids, id)
	r.removeLocked(ent)
}

// UnregisterAll removes every handler owned by the plugin across all
// hooks in one critical section, then blocks until the dispatches that
// were in flight on the affected hooks have drained. After it returns,
// none of the plugin's handlers will be invoked again. Returns the
// number of handlers removed.
//
// Calling UnregisterAll from inside a handler deadlocks when the
// dispatching hook has entries owned by owner: the call would wait on
// its own dispatch. Lifecycle code runs it from the host, never from
// handlers.
func (r *Registry) UnregisterAll(owner string) int {
	r.mu.Lock()

	removed := 0
	var tokens []*dispatchToken
	for _, st := range r.hooks {
		n := 0
		hit := false
		for _, ent := range st.entries {
			if ent.owner != owner {
				st.entries[n] = ent
				n++
				continue
			}
			delete(r.ids, ent.id)
			RegisteredHandlers.WithLabelValues(ent.hook, ent.kind.String()).Dec()
			removed++
			hit = true
		}
		if hit {
			for i := n; i < len(st.entries); i++ {
				st.entries[i] = nil
			}
			st.entries = st.entries[:n]
			tokens = append(tokens, st.inflight...)
		}
	}
	r.mu.Unlock()

	// Dispatches already past the snapshot may still hold removed
	// handlers; wait for exactly those.
	for _, t := range tokens {
		<-t.done
	}

	if removed > 0 {
		r.log.Info("plugin handlers unregistered",
			"plugin", owner,
			"handlers", removed)
	}
	return removed
}

// Dispatch runs the handlers registered on hookName in (priority,
// registration) order against payload and returns the aggregated
// Result.
//
// Handlers see a consistent snapshot of the list taken when dispatch
// begins; registrations and removals during the run affect later
// dispatches only. Action handler errors and panics become failure
// outcomes and dispatch continues. A failing filter handler is skipped
// and the payload it received flows to the next handler. On a critical
// hook the first failure aborts the rest and Dispatch returns a
// CRITICAL_HOOK_FAILURE error alongside the partial result. With no
// handlers registered the payload comes back unchanged.
func (r *Registry) Dispatch(ctx context.Context, hookName string, payload any) (res *Result, err error) {
	def, ok := r.ns.Lookup(hookName)
	if !ok {
		return nil, ErrUnknownHook(hookName)
	}

	snapshot, token := r.snapshot(hookName)
	res = &Result{
		ID:      ulid.Make(),
		Hook:    hookName,
		Kind:    def.Kind,
		Payload: payload,
	}

	status := StatusSuccess
	start := time.Now()
	defer func() {
		recordDispatch(hookName, status)
		recordDispatchDuration(hookName, time.Since(start))
	}()

	if len(snapshot) == 0 {
		return res, nil
	}
	defer r.release(hookName, token)

	ctx, span := tracer.Start(ctx, "hook.dispatch",
		trace.WithAttributes(
			attribute.String("hook.name", hookName),
			attribute.String("hook.kind", def.Kind.String()),
			attribute.Int("hook.handlers", len(snapshot)),
		),
	)
	defer span.End()

	for _, ent := range snapshot {
		if cerr := ctx.Err(); cerr != nil {
			status = StatusCanceled
			span.SetStatus(codes.Error, cerr.Error())
			return res, cerr
		}

		ev := Event{
			ID:      res.ID,
			Hook:    hookName,
			Kind:    def.Kind,
			Time:    time.Now(),
			Payload: res.Payload,
		}
		began := time.Now()
		out, herr := r.invoke(ctx, ent, ev)
		res.Outcomes = append(res.Outcomes, Outcome{
			HandlerID: ent.id,
			Owner:     ent.owner,
			Name:      ent.name,
			Duration:  time.Since(began),
			Err:       herr,
		})

		if herr != nil {
			recordHandlerFailure(hookName, ent.owner)
			r.log.WarnContext(ctx, "hook handler failed",
				"hook", hookName,
				"plugin", ent.owner,
				"handler", ent.name,
				"error", herr)
			if def.Critical {
				status = StatusCritical
				err = ErrCriticalHookFailure(hookName, ent.owner, ent.name, herr)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return res, err
			}
			status = StatusError
			continue
		}

		if def.Kind == KindFilter {
			res.Payload = out
		}
	}
	return res, nil
}

// Handlers returns the handlers registered on a hook in dispatch
// order. The slice is a copy and safe to modify.
func (r *Registry) Handlers(hookName string) []HandlerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.hooks[hookName]
	if st == nil {
		return nil
	}
	infos := make([]HandlerInfo, 0, len(st.entries))
	for _, ent := range st.entries {
		infos = append(infos, HandlerInfo{
			ID:       ent.id,
			Hook:     ent.hook,
			Owner:    ent.owner,
			Name:     ent.name,
			Kind:     ent.kind,
			Priority: ent.priority,
		})
	}
	return infos
}

// snapshot copies the hook's handler list and, when non-empty,
// registers an in-flight token for it.
func (r *Registry) snapshot(hookName string) ([]*entry, *dispatchToken) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.hooks[hookName]
	if st == nil || len(st.entries) == 0 {
		return nil, nil
	}
	snapshot := make([]*entry, len(st.entries))
	copy(snapshot, st.entries)
	token := &dispatchToken{done: make(chan struct{})}
	st.inflight = append(st.inflight, token)
	return snapshot, token
}

// release drops the dispatch token and wakes UnregisterAll waiters.
func (r *Registry) release(hookName string, token *dispatchToken) {
	r.mu.Lock()
	if st := r.hooks[hookName]; st != nil {
		for i, t := range st.inflight {
			if t == token {
				st.inflight = append(st.inflight[:i], st.inflight[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	close(token.done)
}

// removeLocked unlinks an entry from its hook's list. Caller holds
// r.mu.
func (r *Registry) removeLocked(ent *entry) {
	st := r.hooks[ent.hook]
	if st == nil {
		return
	}
	for i, cur := range st.entries {
		if cur.id == ent.id {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
			RegisteredHandlers.WithLabelValues(ent.hook, ent.kind.String()).Dec()
			r.log.Debug("hook handler unregistered",
				"hook", ent.hook,
				"plugin", ent.owner,
				"handler", ent.name,
				"handler_id", ent.id.String())
			return
		}
	}
}

// invoke runs one handler with panic recovery and the optional
// per-handler deadline.
func (r *Registry) invoke(ctx context.Context, ent *entry, ev Event) (out any, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrHandlerPanic(ent.hook, ent.name, rec)
		}
	}()
	return ent.fn(ctx, ev)
}
