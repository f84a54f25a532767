package watchers

import (
	"context"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/investigator"
)

// ModelWatcher reports any field change of one entity, and its deletion.
type ModelWatcher struct {
	*Base
}

// NewModelWatcher creates an unbound watcher of e, which must be persisted.
// WithInclude and WithExclude narrow the fields that count as a change.
func NewModelWatcher(env *Env, e *domain.Entity, cb Callback, opts ...Option) (*ModelWatcher, error) {
	target, err := ForEntity(e)
	if err != nil {
		return nil, err
	}
	b, err := newBase(env, "model", target, "", cb, config{}, opts)
	if err != nil {
		return nil, err
	}
	w := &ModelWatcher{Base: b}
	b.self = w
	return w, nil
}

// Watch binds before_commit, after_commit and after_delete of the entity type.
func (w *ModelWatcher) Watch(ctx context.Context, opts ...Option) error {
	return w.start(ctx, opts, func(ctx context.Context) error {
		schema, ok := w.env.Catalog.Lookup(w.target.Type)
		if !ok {
			return &catalog.UnresolvedError{Type: w.target.Type}
		}
		cfg := w.config()
		inv := investigator.New(w.env.Graph, schema,
			investigator.WithInclude(cfg.include...),
			investigator.WithExclude(cfg.exclude...),
			investigator.WithLogger(w.env.Logger),
		)

		w.bind(domain.BeforeCommit, schema.Name, "pre", func(ctx context.Context, ev *domain.Event) {
			if !w.target.Matches(ev.Instance.PK) {
				return
			}
			if err := inv.Prepare(ctx, ev.Instance); err != nil {
				w.env.Logger.Warn("Failed to snapshot entity", "watcher", w.id, "err", err)
			}
		})
		w.bind(domain.AfterCommit, schema.Name, "post", func(ctx context.Context, ev *domain.Event) {
			if !w.target.Matches(ev.Instance.PK) {
				return
			}
			for range inv.Investigate(ev.Instance) {
				obj := w.fresh(ctx, ev.Instance)
				w.remember(obj)
				w.call(ctx, obj)
				return
			}
		})
		w.bind(domain.AfterDelete, schema.Name, "delete", func(ctx context.Context, ev *domain.Event) {
			if !w.target.Matches(ev.Instance.PK) {
				return
			}
			w.call(ctx, ev.Instance)
		})
		return nil
	})
}
