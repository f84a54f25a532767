package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/huandu/go-clone"
)

type linkKey struct {
	through string
	side    domain.JoinSide
	pk      domain.PK
}

// Store implements ports.Store in memory.
// Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	rows  map[string]map[domain.PK]domain.Record
	seq   map[string]domain.PK
	links map[linkKey]map[domain.PK]struct{}
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		rows:  make(map[string]map[domain.PK]domain.Record),
		seq:   make(map[string]domain.PK),
		links: make(map[linkKey]map[domain.PK]struct{}),
	}
}

// NextID reserves the next sequential key of the type.
func (s *Store) NextID(ctx context.Context, typeName string) (domain.PK, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[typeName]++
	return s.seq[typeName], nil
}

// Put stores a deep copy of the record, similar to serialization.
func (s *Store) Put(ctx context.Context, typeName string, pk domain.PK, record domain.Record) error {
	copied := copyRecord(record)

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.rows[typeName]
	if !ok {
		rows = make(map[domain.PK]domain.Record)
		s.rows[typeName] = rows
	}
	rows[pk] = copied
	if pk > s.seq[typeName] {
		s.seq[typeName] = pk
	}
	return nil
}

// Get retrieves a copy of the row so callers can't mutate store state by reference.
func (s *Store) Get(ctx context.Context, typeName string, pk domain.PK) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rows[typeName][pk]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Delete removes the row.
func (s *Store) Delete(ctx context.Context, typeName string, pk domain.PK) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[typeName][pk]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rows[typeName], pk)
	return nil
}

// List returns the keys of the type in ascending order.
func (s *Store) List(ctx context.Context, typeName string) ([]domain.PK, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pks := make([]domain.PK, 0, len(s.rows[typeName]))
	for pk := range s.rows[typeName] {
		pks = append(pks, pk)
	}
	slices.Sort(pks)
	return pks, nil
}

// Link adds (src, dst) to the join relation, indexed from both sides.
func (s *Store) Link(ctx context.Context, through string, src, dst domain.PK) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLink(linkKey{through, domain.SourceSide, src}, dst)
	s.addLink(linkKey{through, domain.TargetSide, dst}, src)
	return nil
}

// Unlink removes (src, dst) from the join relation.
func (s *Store) Unlink(ctx context.Context, through string, src, dst domain.PK) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLink(linkKey{through, domain.SourceSide, src}, dst)
	s.removeLink(linkKey{through, domain.TargetSide, dst}, src)
	return nil
}

// Links returns the keys linked to pk in ascending order.
func (s *Store) Links(ctx context.Context, through string, side domain.JoinSide, pk domain.PK) ([]domain.PK, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.links[linkKey{through, side, pk}]
	pks := make([]domain.PK, 0, len(set))
	for other := range set {
		pks = append(pks, other)
	}
	slices.Sort(pks)
	return pks, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) addLink(key linkKey, other domain.PK) {
	set, ok := s.links[key]
	if !ok {
		set = make(map[domain.PK]struct{})
		s.links[key] = set
	}
	set[other] = struct{}{}
}

func (s *Store) removeLink(key linkKey, other domain.PK) {
	set, ok := s.links[key]
	if !ok {
		return
	}
	delete(set, other)
	if len(set) == 0 {
		delete(s.links, key)
	}
}

func copyRecord(rec domain.Record) domain.Record {
	if rec == nil {
		return domain.Record{}
	}
	return domain.NormalizeRecord(clone.Clone(rec).(domain.Record))
}
