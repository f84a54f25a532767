package watchers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/lazy"
	"github.com/google/uuid"
)

// State is the binding state of a watcher.
type State int

const (
	// Unbound watchers receive nothing and may be discarded.
	Unbound State = iota
	// Pending watchers wait for a type to become ready.
	Pending
	// Bound watchers receive hook events.
	Bound
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Bound:
		return "bound"
	}
	return "unbound"
}

// metricLabel is the gauge label of the state; unbound watchers are not counted.
func (s State) metricLabel() string {
	if s == Unbound {
		return ""
	}
	return s.String()
}

// Watcher is the contract shared by every watcher kind.
type Watcher interface {
	ID() string
	Kind() string
	Target() Target
	Attr() string
	State() State
	// Watch binds the watcher, unbinding it first if needed. Binding is
	// deferred while a required type is not ready.
	Watch(ctx context.Context, opts ...Option) error
	// Unwatch releases every binding. It is idempotent and safe to call
	// from within the watcher's own callback.
	Unwatch()
}

type bindingRef struct {
	kind     domain.HookKind
	sender   string
	receiver string
}

// Base implements the lifecycle shared by all watchers.
type Base struct {
	env      *Env
	self     Watcher
	id       string
	kind     string
	target   Target
	attr     string
	callback Callback

	mu         sync.Mutex
	defaults   config
	opts       []Option
	state      State
	generation uint64
	bindings   []bindingRef
	children   []Watcher
	cached     *domain.Entity
}

func newBase(env *Env, kind string, target Target, attr string, cb Callback, defaults config, opts []Option) (*Base, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("%s watcher requires a callback", kind)
	}
	b := &Base{
		env:      env,
		id:       kind + "-" + uuid.NewString(),
		kind:     kind,
		target:   target,
		attr:     attr,
		callback: cb,
		defaults: defaults,
		opts:     append([]Option(nil), opts...),
	}
	if target.Entity != nil {
		b.cached = target.Entity.Clone()
	}
	return b, nil
}

func (b *Base) ID() string     { return b.id }
func (b *Base) Kind() string   { return b.kind }
func (b *Base) Target() Target { return b.target }
func (b *Base) Attr() string   { return b.attr }

// State returns the current binding state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) config() config {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.defaults
	for _, opt := range b.opts {
		opt(&c)
	}
	return c
}

// options returns the accumulated options, for handing down to inner watchers.
func (b *Base) options() []Option {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Option(nil), b.opts...)
}

func (b *Base) setStateLocked(s State) {
	if b.state == s {
		return
	}
	b.env.Metrics.StateChanged(b.state.metricLabel(), s.metricLabel())
	b.state = s
}

func (b *Base) current(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation == gen && b.state == Pending
}

// start runs one binding cycle: unbind, apply options, then bind (or defer).
func (b *Base) start(ctx context.Context, opts []Option, bind func(ctx context.Context) error) error {
	b.self.Unwatch()

	b.mu.Lock()
	b.opts = append(b.opts, opts...)
	b.generation++
	gen := b.generation
	b.setStateLocked(Pending)
	b.mu.Unlock()

	if !b.config().nested {
		b.env.Registry.Register(b.self)
	}
	// Deferred binds outlive the caller's context.
	return b.attempt(context.WithoutCancel(ctx), gen, bind)
}

func (b *Base) attempt(ctx context.Context, gen uint64, bind func(ctx context.Context) error) error {
	if !b.current(gen) {
		return nil
	}

	err := bind(ctx)
	var unresolved *catalog.UnresolvedError
	switch {
	case errors.As(err, &unresolved):
		b.release()
		b.env.Metrics.WatchDeferred()
		b.env.Logger.Debug("Watch deferred until type is ready",
			"watcher", b.id,
			"target", b.target.String(),
			"attr", b.attr,
			"waiting_for", unresolved.Type,
		)
		b.env.Resolver.Resolve(unresolved.Type, func(*domain.Schema) {
			if err := b.attempt(ctx, gen, bind); err != nil {
				b.env.Logger.Warn("Deferred watch failed",
					"watcher", b.id,
					"target", b.target.String(),
					"attr", b.attr,
					"err", err,
				)
			}
		})
		return nil
	case errors.Is(err, domain.ErrUnknownAttribute) && b.config().deferUnknown && b.undeclared():
		b.release()
		b.env.Metrics.WatchDeferred()
		b.env.Logger.Debug("Watch deferred until attribute is declared",
			"watcher", b.id,
			"target", b.target.String(),
			"attr", b.attr,
		)
		b.env.Resolver.Resolve(lazy.AnyType, func(*domain.Schema) {
			if err := b.attempt(ctx, gen, bind); err != nil {
				b.env.Logger.Warn("Deferred watch failed",
					"watcher", b.id,
					"target", b.target.String(),
					"attr", b.attr,
					"err", err,
				)
			}
		})
		return nil
	case err != nil:
		b.self.Unwatch()
		return err
	}

	b.mu.Lock()
	if b.generation == gen {
		b.setStateLocked(Bound)
	}
	b.mu.Unlock()
	return nil
}

// undeclared reports whether the watched attribute is missing from the
// catalog, as opposed to declared with an unsupported kind.
func (b *Base) undeclared() bool {
	_, err := b.env.Catalog.Relation(b.target.Type, b.attr)
	return errors.Is(err, domain.ErrUnknownAttribute)
}

// Unwatch releases the bindings and inner watchers of the current cycle.
func (b *Base) Unwatch() {
	b.mu.Lock()
	if b.state == Unbound {
		b.mu.Unlock()
		return
	}
	b.generation++
	b.setStateLocked(Unbound)
	b.mu.Unlock()

	b.release()
	if !b.config().nested {
		b.env.Registry.Unregister(b.id)
	}
}

// release drops hook bindings and inner watchers without touching the state.
func (b *Base) release() {
	b.mu.Lock()
	bindings := b.bindings
	children := b.children
	b.bindings = nil
	b.children = nil
	b.mu.Unlock()

	n := 0
	for _, ref := range bindings {
		if b.env.Broker.Unregister(ref.kind, ref.sender, ref.receiver) {
			n++
		}
	}
	b.env.Metrics.BindingsChanged(-n)
	for _, child := range children {
		child.Unwatch()
	}
}

// bind registers fn under a receiver ID derived from the watcher ID.
func (b *Base) bind(kind domain.HookKind, sender, name string, fn domain.Receiver) {
	ref := bindingRef{kind: kind, sender: sender, receiver: b.id + "/" + name}
	if !b.env.Broker.Register(ref.kind, ref.sender, ref.receiver, fn) {
		return
	}
	b.mu.Lock()
	b.bindings = append(b.bindings, ref)
	b.mu.Unlock()
	b.env.Metrics.BindingsChanged(1)
}

// adopt ties the lifetime of child to the current binding cycle.
func (b *Base) adopt(child Watcher) {
	b.mu.Lock()
	b.children = append(b.children, child)
	b.mu.Unlock()
}

// remember replaces the last known state of an instance target.
func (b *Base) remember(e *domain.Entity) {
	b.mu.Lock()
	b.cached = e.Clone()
	b.mu.Unlock()
}

// Cached returns the last known state of the watched instance, or nil for
// type targets.
func (b *Base) Cached() *domain.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cached.Clone()
}

// call invokes the callback with the freshest obtainable state of e.
// Nothing happens once the watcher is no longer bound.
func (b *Base) call(ctx context.Context, e *domain.Entity) {
	if b.State() != Bound {
		return
	}
	obj := b.fresh(ctx, e)
	b.env.Metrics.CallbackFired(b.kind, b.attr)
	b.callback(ctx, b.self, obj, b.attr)
}

// fresh reloads e, falling back to e itself when the row is gone.
func (b *Base) fresh(ctx context.Context, e *domain.Entity) *domain.Entity {
	if !e.HasIdentity() {
		return e
	}
	latest, err := b.env.Graph.Load(ctx, e.Type, e.PK)
	switch {
	case err == nil:
		return latest
	case errors.Is(err, domain.ErrNotFound):
		b.env.Logger.Debug("Entity vanished, using cached copy", "watcher", b.id, "entity", e.Ref().String())
	default:
		b.env.Logger.Warn("Failed to reload entity, using cached copy", "watcher", b.id, "entity", e.Ref().String(), "err", err)
	}
	return e
}

// Info describes a watcher for listings.
type Info struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Attr   string `json:"attr,omitempty"`
	State  string `json:"state"`
}

// Describe summarizes w.
func Describe(w Watcher) Info {
	return Info{
		ID:     w.ID(),
		Kind:   w.Kind(),
		Target: w.Target().String(),
		Attr:   w.Attr(),
		State:  w.State().String(),
	}
}
