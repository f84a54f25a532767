package watchers

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/investigator"
)

// RelatedWatcherBase watches an association: changes of its membership, and
// modifications of related rows that belong to it.
//
// Related rows are investigated with the WithInclude/WithExclude filters; a
// reportable change notifies every owner the row belonged to before or
// after the commit. Owners are reported through the callback as the obj.
type RelatedWatcherBase struct {
	*Base

	mu  sync.Mutex
	rel *domain.Relation
}

func newRelatedBase(env *Env, kind string, target Target, attr string, cb Callback, opts []Option) (*RelatedWatcherBase, error) {
	b, err := newBase(env, kind, target, attr, cb, config{callOnCreated: true}, opts)
	if err != nil {
		return nil, err
	}
	return &RelatedWatcherBase{Base: b}, nil
}

// Relation returns the resolved descriptor, or false before the first bind.
func (w *RelatedWatcherBase) Relation() (domain.Relation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rel == nil {
		return domain.Relation{}, false
	}
	return *w.rel, true
}

// IsReversed reports whether the watched type is not the declaring side.
func (w *RelatedWatcherBase) IsReversed() bool {
	rel, _ := w.Relation()
	return rel.Reversed
}

// RelatedModel returns the type on the other side. It is empty for
// polymorphic references, which may point at any type.
func (w *RelatedWatcherBase) RelatedModel() string {
	rel, _ := w.Relation()
	return rel.Related
}

// RelatedAttr returns the accessor on the related type pointing back.
func (w *RelatedWatcherBase) RelatedAttr() string {
	rel, _ := w.Relation()
	return rel.RelatedAttr
}

// GetValues returns the current members of the association of owner.
func (w *RelatedWatcherBase) GetValues(ctx context.Context, owner *domain.Entity) ([]*domain.Entity, error) {
	rel, ok := w.Relation()
	if !ok {
		return nil, fmt.Errorf("%s is not resolved yet", w.attr)
	}
	return membersOf(ctx, w.env.Graph, rel, owner)
}

// resolve looks the attribute up and checks its kind against allowed.
func (w *RelatedWatcherBase) resolve(allowed ...domain.RelationshipKind) (domain.Relation, error) {
	rel, err := w.env.Catalog.Relation(w.target.Type, w.attr)
	if err != nil {
		return rel, err
	}
	ok := false
	for _, k := range allowed {
		ok = ok || rel.Kind == k
	}
	if !ok {
		return rel, fmt.Errorf("%w: %s.%s is %s, not watchable by a %s watcher",
			domain.ErrUnknownAttribute, w.target.Type, w.attr, rel.Kind, w.kind)
	}
	w.mu.Lock()
	w.rel = &rel
	w.mu.Unlock()
	return rel, nil
}

// bindRelated binds the hooks shared by every association kind.
func (w *RelatedWatcherBase) bindRelated(rel domain.Relation) {
	cfg := w.config()
	include := cfg.include
	watchRelated := true
	if cfg.membershipOnly {
		include = rel.MembershipColumns()
		watchRelated = len(include) > 0
	}

	if watchRelated {
		invs := &investigatorSet{env: w.env, include: include, exclude: cfg.exclude}
		w.bind(domain.BeforeCommit, rel.Related, "related-pre", func(ctx context.Context, ev *domain.Event) {
			if ev.Raw {
				return
			}
			inv := invs.get(ev.Instance.Type)
			if inv == nil {
				return
			}
			if err := inv.Prepare(ctx, ev.Instance); err != nil {
				w.env.Logger.Warn("Failed to snapshot related entity", "watcher", w.id, "err", err)
			}
		})
		w.bind(domain.AfterCommit, rel.Related, "related-post", func(ctx context.Context, ev *domain.Event) {
			if ev.Raw {
				return
			}
			w.relatedCommitted(ctx, rel, invs, ev)
		})
	}

	if !cfg.membershipOnly {
		w.bind(domain.AfterDelete, rel.Related, "related-delete", func(ctx context.Context, ev *domain.Event) {
			if ev.Raw {
				return
			}
			w.callOwners(ctx, rel, w.owners(ctx, rel, ev.Instance))
		})
	}

	if !w.target.IsInstance() {
		w.bind(domain.AfterCommit, rel.Owner, "created", func(ctx context.Context, ev *domain.Event) {
			if ev.Raw || !ev.Created || !w.config().callOnCreated {
				return
			}
			members, err := membersOf(ctx, w.env.Graph, rel, ev.Instance)
			if err != nil {
				w.env.Logger.Warn("Failed to read association", "watcher", w.id, "entity", ev.Instance.Ref().String(), "err", err)
				return
			}
			if len(members) > 0 {
				w.call(ctx, ev.Instance)
			}
		})
	}
}

func (w *RelatedWatcherBase) relatedCommitted(ctx context.Context, rel domain.Relation, invs *investigatorSet, ev *domain.Event) {
	inv := invs.get(ev.Instance.Type)
	if inv == nil {
		return
	}
	cached, _ := inv.GetCached(ev.Instance.PK, true)
	changed := false
	for range inv.Investigate(ev.Instance) {
		changed = true
		break
	}

	if ev.Created {
		if w.config().callOnCreated {
			w.callOwners(ctx, rel, w.owners(ctx, rel, ev.Instance))
		}
		return
	}
	if !changed {
		return
	}
	w.callOwners(ctx, rel, union(w.owners(ctx, rel, cached), w.owners(ctx, rel, ev.Instance)))
}

func (w *RelatedWatcherBase) owners(ctx context.Context, rel domain.Relation, related *domain.Entity) []domain.PK {
	pks, err := ownersOf(ctx, w.env.Graph, rel, related)
	if err != nil {
		w.env.Logger.Warn("Failed to resolve owners", "watcher", w.id, "entity", related.Ref().String(), "err", err)
		return nil
	}
	return pks
}

// callOwners notifies each targeted owner once, skipping vanished ones.
func (w *RelatedWatcherBase) callOwners(ctx context.Context, rel domain.Relation, pks []domain.PK) {
	for _, pk := range union(pks) {
		if !w.target.Matches(pk) {
			continue
		}
		owner, err := w.env.Graph.Load(ctx, rel.Owner, pk)
		if err != nil {
			w.env.Logger.Debug("Skipping owner", "watcher", w.id, "type", rel.Owner, "pk", pk, "err", err)
			continue
		}
		w.call(ctx, owner)
	}
}

// investigatorSet keeps one Investigator per related type, so polymorphic
// associations can investigate rows of any type.
type investigatorSet struct {
	env     *Env
	include []string
	exclude []string

	mu   sync.Mutex
	invs map[string]*investigator.Investigator
}

func (s *investigatorSet) get(typeName string) *investigator.Investigator {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := catalog.Key(typeName)
	if inv, ok := s.invs[key]; ok {
		return inv
	}
	schema, ok := s.env.Catalog.Lookup(typeName)
	if !ok {
		return nil
	}
	if s.invs == nil {
		s.invs = make(map[string]*investigator.Investigator)
	}
	inv := investigator.New(s.env.Graph, schema,
		investigator.WithInclude(s.include...),
		investigator.WithExclude(s.exclude...),
		investigator.WithLogger(s.env.Logger),
	)
	s.invs[key] = inv
	return inv
}

// RelatedWatcher watches a to-one, reverse to-one or to-many association.
// For a forward to-one reference it also watches the reference column on
// the owner, so reassignment is seen from either side.
type RelatedWatcher struct {
	*RelatedWatcherBase
}

// NewRelatedWatcher creates an unbound watcher of target.attr. Creation is
// reported unless WithCallOnCreated(false) is given.
func NewRelatedWatcher(env *Env, target Target, attr string, cb Callback, opts ...Option) (*RelatedWatcher, error) {
	base, err := newRelatedBase(env, "related", target, attr, cb, opts)
	if err != nil {
		return nil, err
	}
	w := &RelatedWatcher{RelatedWatcherBase: base}
	base.self = w
	return w, nil
}

func (w *RelatedWatcher) Watch(ctx context.Context, opts ...Option) error {
	return w.start(ctx, opts, func(ctx context.Context) error {
		rel, err := w.resolve(domain.ToOne, domain.ReverseToOne, domain.ToMany)
		if err != nil {
			return err
		}
		w.bindRelated(rel)

		if rel.Kind == domain.ToOne && !rel.Reversed {
			inner, err := newFieldsWatcher(w.env, w.target, w.attr, []string{rel.Column}, w.innerCallback,
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

func (w *RelatedWatcherBase) innerCallback(ctx context.Context, _ Watcher, obj *domain.Entity, _ string) {
	w.call(ctx, obj)
}
