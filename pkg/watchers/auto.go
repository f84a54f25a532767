package watchers

import (
	"context"
	"fmt"

	"github.com/aretw0/observer/pkg/domain"
)

// newForKind builds the watcher matching the relationship kind of rel.
func newForKind(env *Env, target Target, rel domain.Relation, cb Callback, opts ...Option) (Watcher, error) {
	switch rel.Kind {
	case domain.GenericToMany, domain.GenericToOne:
		return NewGenericRelatedWatcher(env, target, rel.Name, cb, opts...)
	case domain.ReverseToOne, domain.ToMany, domain.ToOne:
		return NewRelatedWatcher(env, target, rel.Name, cb, opts...)
	case domain.ManyToMany:
		return NewManyRelatedWatcher(env, target, rel.Name, cb, opts...)
	case domain.Scalar:
		return NewValueWatcher(env, target, rel.Name, cb, opts...)
	}
	return nil, fmt.Errorf("%w: %s.%s has unsupported kind %s", domain.ErrUnknownAttribute, rel.Owner, rel.Name, rel.Kind)
}

// AutoWatcher picks the watcher kind from the attribute's relationship kind
// each time it is bound.
type AutoWatcher struct {
	*Base
}

// NewAutoWatcher creates an unbound watcher of target.attr. Options are
// passed on to the selected watcher.
func NewAutoWatcher(env *Env, target Target, attr string, cb Callback, opts ...Option) (*AutoWatcher, error) {
	b, err := newBase(env, "auto", target, attr, cb, config{}, opts)
	if err != nil {
		return nil, err
	}
	w := &AutoWatcher{Base: b}
	b.self = w
	return w, nil
}

func (w *AutoWatcher) Watch(ctx context.Context, opts ...Option) error {
	return w.start(ctx, opts, func(ctx context.Context) error {
		rel, err := w.env.Catalog.Relation(w.target.Type, w.attr)
		if err != nil {
			return err
		}
		inner, err := newForKind(w.env, w.target, rel, w.forward, append(w.options(), nested())...)
		if err != nil {
			return err
		}
		w.adopt(inner)
		return inner.Watch(ctx)
	})
}

func (w *AutoWatcher) forward(ctx context.Context, _ Watcher, obj *domain.Entity, _ string) {
	w.call(ctx, obj)
}
