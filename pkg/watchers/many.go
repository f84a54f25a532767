package watchers

import (
	"context"
	"sync"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
)

// ManyRelatedWatcher watches a many-to-many association. Besides the
// related rows it follows add, remove and clear on the join relation.
type ManyRelatedWatcher struct {
	*RelatedWatcherBase

	clearMu sync.Mutex
	// Owners linked to an opposite-side instance right before it was cleared.
	cleared map[domain.Ref][]domain.PK
}

// NewManyRelatedWatcher creates an unbound watcher of target.attr.
func NewManyRelatedWatcher(env *Env, target Target, attr string, cb Callback, opts ...Option) (*ManyRelatedWatcher, error) {
	base, err := newRelatedBase(env, "many_related", target, attr, cb, opts)
	if err != nil {
		return nil, err
	}
	w := &ManyRelatedWatcher{RelatedWatcherBase: base, cleared: make(map[domain.Ref][]domain.PK)}
	base.self = w
	return w, nil
}

func (w *ManyRelatedWatcher) Watch(ctx context.Context, opts ...Option) error {
	return w.start(ctx, opts, func(ctx context.Context) error {
		rel, err := w.resolve(domain.ManyToMany)
		if err != nil {
			return err
		}
		w.bindRelated(rel)
		w.bind(domain.BeforeCollectionChange, rel.Through, "m2m-pre", func(ctx context.Context, ev *domain.Event) {
			if ev.Raw {
				return
			}
			w.beforeChange(ctx, rel, ev)
		})
		w.bind(domain.AfterCollectionChange, rel.Through, "m2m-post", func(ctx context.Context, ev *domain.Event) {
			if ev.Raw {
				return
			}
			w.afterChange(ctx, rel, ev)
		})
		return nil
	})
}

// ownerSide reports whether the collection that changed is the watched one.
func (w *ManyRelatedWatcher) ownerSide(rel domain.Relation, ev *domain.Event) bool {
	return catalog.Key(ev.Instance.Type) == catalog.Key(rel.Owner) && ev.Side == rel.Side
}

func (w *ManyRelatedWatcher) beforeChange(ctx context.Context, rel domain.Relation, ev *domain.Event) {
	if ev.Action != domain.ActionClear || w.ownerSide(rel, ev) {
		return
	}
	owners := ev.AffectedIDs
	if owners == nil {
		var err error
		owners, err = w.env.Graph.Links(ctx, rel.Through, ev.Side, ev.Instance.PK)
		if err != nil {
			w.env.Logger.Warn("Failed to capture membership before clear", "watcher", w.id, "err", err)
			return
		}
	}
	w.clearMu.Lock()
	w.cleared[ev.Instance.Ref()] = append([]domain.PK(nil), owners...)
	w.clearMu.Unlock()
}

func (w *ManyRelatedWatcher) afterChange(ctx context.Context, rel domain.Relation, ev *domain.Event) {
	if w.ownerSide(rel, ev) {
		if w.target.Matches(ev.Instance.PK) {
			w.call(ctx, ev.Instance)
		}
		return
	}

	owners := ev.AffectedIDs
	if ev.Action == domain.ActionClear {
		w.clearMu.Lock()
		if owners == nil {
			owners = w.cleared[ev.Instance.Ref()]
		}
		delete(w.cleared, ev.Instance.Ref())
		w.clearMu.Unlock()
	}
	w.callOwners(ctx, rel, owners)
}
