package watchers

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/ports"
)

// ownersOf returns the owners whose association contains related, in
// ascending order. A nil related has no owners.
func ownersOf(ctx context.Context, g ports.Graph, rel domain.Relation, related *domain.Entity) ([]domain.PK, error) {
	if related == nil {
		return nil, nil
	}
	switch rel.Kind {
	case domain.ToOne:
		return filterPKs(ctx, g, rel.Owner, domain.Record{rel.Column: related.PK})
	case domain.ReverseToOne, domain.ToMany:
		if pk, ok := domain.AsPK(related.Get(rel.Column)); ok {
			return []domain.PK{pk}, nil
		}
		return nil, nil
	case domain.ManyToMany:
		return g.Links(ctx, rel.Through, rel.Side.Opposite(), related.PK)
	case domain.GenericToOne:
		return filterPKs(ctx, g, rel.Owner, domain.Record{rel.TypeField: related.Type, rel.IDField: related.PK})
	case domain.GenericToMany:
		typeName, _ := related.Get(rel.TypeField).(string)
		if catalog.Key(typeName) != catalog.Key(rel.Owner) {
			return nil, nil
		}
		if pk, ok := domain.AsPK(related.Get(rel.IDField)); ok {
			return []domain.PK{pk}, nil
		}
		return nil, nil
	}
	return nil, nil
}

func filterPKs(ctx context.Context, g ports.Graph, typeName string, match domain.Record) ([]domain.PK, error) {
	found, err := g.Filter(ctx, typeName, match)
	if err != nil {
		return nil, err
	}
	pks := make([]domain.PK, 0, len(found))
	for _, e := range found {
		pks = append(pks, e.PK)
	}
	return pks, nil
}

// membersOf returns the current members of the association of owner.
func membersOf(ctx context.Context, g ports.Graph, rel domain.Relation, owner *domain.Entity) ([]*domain.Entity, error) {
	switch rel.Kind {
	case domain.ToOne:
		pk, ok := domain.AsPK(owner.Get(rel.Column))
		if !ok {
			return nil, nil
		}
		return loadAll(ctx, g, rel.Related, []domain.PK{pk})
	case domain.ReverseToOne, domain.ToMany:
		return g.Filter(ctx, rel.Related, domain.Record{rel.Column: owner.PK})
	case domain.ManyToMany:
		pks, err := g.Links(ctx, rel.Through, rel.Side, owner.PK)
		if err != nil {
			return nil, err
		}
		return loadAll(ctx, g, rel.Related, pks)
	case domain.GenericToOne:
		e, err := dereference(ctx, g, rel, owner)
		if e == nil || err != nil {
			return nil, err
		}
		return []*domain.Entity{e}, nil
	case domain.GenericToMany:
		return g.Filter(ctx, rel.Related, domain.Record{rel.TypeField: owner.Type, rel.IDField: owner.PK})
	}
	return nil, nil
}

// dereference follows the polymorphic (type, id) pointer of owner.
// It returns nil if the pointer is unset or the row is gone.
func dereference(ctx context.Context, g ports.Graph, rel domain.Relation, owner *domain.Entity) (*domain.Entity, error) {
	typeName, _ := owner.Get(rel.TypeField).(string)
	pk, ok := domain.AsPK(owner.Get(rel.IDField))
	if typeName == "" || !ok {
		return nil, nil
	}
	e, err := g.Load(ctx, typeName, pk)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dereference %s.%s: %w", owner.Ref(), rel.Name, err)
	}
	return e, nil
}

// loadAll loads the rows that still exist, in the order of pks.
func loadAll(ctx context.Context, g ports.Graph, typeName string, pks []domain.PK) ([]*domain.Entity, error) {
	var out []*domain.Entity
	for _, pk := range pks {
		e, err := g.Load(ctx, typeName, pk)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// union merges sorted key sets.
func union(sets ...[]domain.PK) []domain.PK {
	var out []domain.PK
	for _, s := range sets {
		out = append(out, s...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
