package watchers

import (
	"context"
	"fmt"

	"github.com/aretw0/observer/pkg/domain"
)

// GenericRelatedWatcher watches a polymorphic association: either the
// (type, id) reference held by the watched type, or the reverse collection
// of rows pointing at it.
type GenericRelatedWatcher struct {
	*RelatedWatcherBase
}

// NewGenericRelatedWatcher creates an unbound watcher of target.attr.
func NewGenericRelatedWatcher(env *Env, target Target, attr string, cb Callback, opts ...Option) (*GenericRelatedWatcher, error) {
	base, err := newRelatedBase(env, "generic_related", target, attr, cb, opts)
	if err != nil {
		return nil, err
	}
	w := &GenericRelatedWatcher{RelatedWatcherBase: base}
	base.self = w
	return w, nil
}

func (w *GenericRelatedWatcher) Watch(ctx context.Context, opts ...Option) error {
	return w.start(ctx, opts, func(ctx context.Context) error {
		rel, err := w.resolve(domain.GenericToOne, domain.GenericToMany)
		if err != nil {
			return err
		}
		w.bindRelated(rel)

		if rel.Kind == domain.GenericToOne {
			// Retargeting changes either column, or both in one commit.
			inner, err := newFieldsWatcher(w.env, w.target, w.attr, []string{rel.TypeField, rel.IDField}, w.innerCallback,
				WithCallOnCreated(false), nested())
			if err != nil {
				return err
			}
			w.adopt(inner)
			return inner.Watch(ctx)
		}
		return nil
	})
}

// GetValue dereferences the polymorphic pointer of instance. It returns nil
// if the pointer is unset or the referenced row is gone. For the reverse
// side, use GetValues.
func (w *GenericRelatedWatcher) GetValue(ctx context.Context, instance *domain.Entity) (*domain.Entity, error) {
	rel, ok := w.Relation()
	if !ok {
		return nil, fmt.Errorf("%s is not resolved yet", w.attr)
	}
	if rel.Kind != domain.GenericToOne {
		return nil, fmt.Errorf("%s.%s is a collection", rel.Owner, rel.Name)
	}
	return dereference(ctx, w.env.Graph, rel, instance)
}
