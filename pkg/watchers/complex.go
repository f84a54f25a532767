package watchers

import (
	"context"
	"sync"

	"github.com/aretw0/observer/pkg/domain"
)

// ComplexWatcher watches an attribute together with the current members of
// its association. For an instance target it combines:
//
//   - an association watcher that reports membership changes, and
//   - one ModelWatcher per current member, reporting member modifications.
//
// Member watchers are rebuilt from scratch whenever the membership changes.
// For a type target, or a stored value, it behaves like an AutoWatcher.
type ComplexWatcher struct {
	*Base

	membersMu sync.Mutex
	members   []Watcher
}

// NewComplexWatcher creates an unbound watcher of target.attr.
func NewComplexWatcher(env *Env, target Target, attr string, cb Callback, opts ...Option) (*ComplexWatcher, error) {
	b, err := newBase(env, "complex", target, attr, cb, config{}, opts)
	if err != nil {
		return nil, err
	}
	w := &ComplexWatcher{Base: b}
	b.self = w
	return w, nil
}

func (w *ComplexWatcher) Watch(ctx context.Context, opts ...Option) error {
	return w.start(ctx, opts, func(ctx context.Context) error {
		rel, err := w.env.Catalog.Relation(w.target.Type, w.attr)
		if err != nil {
			return err
		}

		if !w.target.IsInstance() || !rel.Kind.IsRelational() {
			inner, err := newForKind(w.env, w.target, rel, w.forward, append(w.options(), nested())...)
			if err != nil {
				return err
			}
			w.adopt(inner)
			return inner.Watch(ctx)
		}

		assoc, err := newForKind(w.env, w.target, rel, func(ctx context.Context, _ Watcher, obj *domain.Entity, _ string) {
			w.call(ctx, obj)
			w.rebuild(ctx, rel)
		}, nested(), membershipOnly())
		if err != nil {
			return err
		}
		w.adopt(assoc)
		if err := assoc.Watch(ctx); err != nil {
			return err
		}
		return w.setMembers(ctx, rel)
	})
}

// Unwatch releases the association watcher and every member watcher.
func (w *ComplexWatcher) Unwatch() {
	w.Base.Unwatch()
	w.dropMembers()
}

// Members returns the current member watchers.
func (w *ComplexWatcher) Members() []Watcher {
	w.membersMu.Lock()
	defer w.membersMu.Unlock()
	return append([]Watcher(nil), w.members...)
}

func (w *ComplexWatcher) forward(ctx context.Context, _ Watcher, obj *domain.Entity, _ string) {
	w.call(ctx, obj)
}

func (w *ComplexWatcher) rebuild(ctx context.Context, rel domain.Relation) {
	if w.State() != Bound {
		return
	}
	if err := w.setMembers(ctx, rel); err != nil {
		w.env.Logger.Warn("Failed to rebuild member watchers", "watcher", w.id, "err", err)
	}
}

// setMembers replaces the member watchers with one per current member.
func (w *ComplexWatcher) setMembers(ctx context.Context, rel domain.Relation) error {
	w.dropMembers()

	owner := w.fresh(ctx, w.target.Entity)
	members, err := membersOf(ctx, w.env.Graph, rel, owner)
	if err != nil {
		return err
	}

	var watchers []Watcher
	if len(members) == 0 && (rel.Kind == domain.ToOne || rel.Kind == domain.GenericToOne) && rel.Nullable {
		dummy := NewDummyWatcher(w.target, w.attr)
		_ = dummy.Watch(ctx)
		watchers = append(watchers, dummy)
	}
	for _, m := range members {
		mw, err := NewModelWatcher(w.env, m, func(ctx context.Context, _ Watcher, _ *domain.Entity, _ string) {
			w.call(ctx, w.target.Entity)
		}, nested())
		if err != nil {
			unwatchAll(watchers)
			return err
		}
		if err := mw.Watch(ctx); err != nil {
			unwatchAll(watchers)
			return err
		}
		watchers = append(watchers, mw)
	}

	w.membersMu.Lock()
	w.members = watchers
	w.membersMu.Unlock()
	return nil
}

func (w *ComplexWatcher) dropMembers() {
	w.membersMu.Lock()
	members := w.members
	w.members = nil
	w.membersMu.Unlock()
	unwatchAll(members)
}

func unwatchAll(ws []Watcher) {
	for _, m := range ws {
		m.Unwatch()
	}
}
