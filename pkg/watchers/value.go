package watchers

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/investigator"
)

// ValueWatcher reports changes of a stored attribute.
type ValueWatcher struct {
	*Base
	fields []string
}

// NewValueWatcher creates an unbound watcher of target.attr. Creation is not
// reported unless WithCallOnCreated(true) is given.
func NewValueWatcher(env *Env, target Target, attr string, cb Callback, opts ...Option) (*ValueWatcher, error) {
	return newFieldsWatcher(env, target, attr, []string{attr}, cb, opts...)
}

// newFieldsWatcher watches several stored fields and reports them as attr,
// at most once per commit.
func newFieldsWatcher(env *Env, target Target, attr string, fields []string, cb Callback, opts ...Option) (*ValueWatcher, error) {
	b, err := newBase(env, "value", target, attr, cb, config{}, opts)
	if err != nil {
		return nil, err
	}
	w := &ValueWatcher{Base: b, fields: fields}
	b.self = w
	return w, nil
}

// Watch binds before_commit and after_commit of the target type.
func (w *ValueWatcher) Watch(ctx context.Context, opts ...Option) error {
	return w.start(ctx, opts, func(ctx context.Context) error {
		for _, name := range w.fields {
			rel, err := w.env.Catalog.Relation(w.target.Type, name)
			if err != nil {
				return err
			}
			if !rel.Kind.IsConcrete() {
				return fmt.Errorf("%w: %s.%s is %s, not a stored value", domain.ErrUnknownAttribute, w.target.Type, name, rel.Kind)
			}
		}
		schema, _ := w.env.Catalog.Lookup(w.target.Type)

		inv := investigator.New(w.env.Graph, schema,
			investigator.WithInclude(w.fields...),
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
			changed := false
			for name := range inv.Investigate(ev.Instance) {
				if slices.Contains(w.fields, name) {
					changed = true
				}
			}
			if ev.Created && w.config().callOnCreated {
				w.call(ctx, ev.Instance)
				return
			}
			if changed {
				w.call(ctx, ev.Instance)
			}
		})
		return nil
	})
}
