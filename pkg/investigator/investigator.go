package investigator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/ports"
)

// Investigator snapshots the persisted state of entities of one type before
// a mutation and reports which fields differ afterwards.
type Investigator struct {
	graph   ports.Graph
	schema  *domain.Schema
	include []string
	exclude []string
	logger  *slog.Logger

	mu        sync.Mutex
	snapshots map[domain.PK]domain.Record
}

// Option configures the Investigator.
type Option func(*Investigator)

// WithInclude restricts the investigated fields to names.
func WithInclude(names ...string) Option {
	return func(i *Investigator) {
		i.include = append(i.include, names...)
	}
}

// WithExclude drops names from the investigated fields.
func WithExclude(names ...string) Option {
	return func(i *Investigator) {
		i.exclude = append(i.exclude, names...)
	}
}

// WithLogger configures a logger for the Investigator.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Investigator) {
		i.logger = logger
	}
}

// New creates an Investigator for entities described by schema.
func New(graph ports.Graph, schema *domain.Schema, opts ...Option) *Investigator {
	i := &Investigator{
		graph:     graph,
		schema:    schema,
		logger:    logging.NewNop(),
		snapshots: make(map[domain.PK]domain.Record),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Fields returns the investigated field names in declaration order.
func (i *Investigator) Fields() []string {
	var out []string
	for _, name := range i.schema.ConcreteFields() {
		if len(i.include) > 0 && !slices.Contains(i.include, name) {
			continue
		}
		if slices.Contains(i.exclude, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Prepare stores the persisted pre-image of e, replacing any previous
// snapshot of the same identity. Entities without identity are ignored, and
// so are identities with no persisted row.
func (i *Investigator) Prepare(ctx context.Context, e *domain.Entity) error {
	if !e.HasIdentity() {
		return nil
	}

	pre, err := i.graph.Load(ctx, i.schema.Name, e.PK)
	if errors.Is(err, domain.ErrNotFound) {
		i.mu.Lock()
		delete(i.snapshots, e.PK)
		i.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load pre-image of %s: %w", e.Ref(), err)
	}

	i.mu.Lock()
	i.snapshots[e.PK] = pre.Fields
	i.mu.Unlock()
	return nil
}

// Investigate consumes the snapshot of e and yields the names of the
// investigated fields whose value changed. The sequence can be ranged over
// once; without a snapshot it is empty.
func (i *Investigator) Investigate(e *domain.Entity) iter.Seq[string] {
	var snapshot domain.Record
	var found bool
	if e.HasIdentity() {
		i.mu.Lock()
		snapshot, found = i.snapshots[e.PK]
		delete(i.snapshots, e.PK)
		i.mu.Unlock()
	}

	used := false
	return func(yield func(string) bool) {
		if !found || used {
			return
		}
		used = true
		for _, name := range i.Fields() {
			if domain.Equal(snapshot[name], e.Get(name)) {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

// GetCached returns the snapshot of pk as an entity without consuming it.
// A missing snapshot yields domain.ErrNotFound, or nil when ignoreMissing is set.
func (i *Investigator) GetCached(pk domain.PK, ignoreMissing bool) (*domain.Entity, error) {
	i.mu.Lock()
	rec, ok := i.snapshots[pk]
	i.mu.Unlock()

	if !ok {
		if ignoreMissing {
			return nil, nil
		}
		return nil, fmt.Errorf("no snapshot for %s#%d: %w", i.schema.Name, pk, domain.ErrNotFound)
	}
	return (&domain.Entity{Type: i.schema.Name, PK: pk, Fields: rec}).Clone(), nil
}

// GetObject loads the current persisted state of pk.
// A missing row yields domain.ErrNotFound, or nil when ignoreMissing is set.
func (i *Investigator) GetObject(ctx context.Context, pk domain.PK, ignoreMissing bool) (*domain.Entity, error) {
	e, err := i.graph.Load(ctx, i.schema.Name, pk)
	if errors.Is(err, domain.ErrNotFound) && ignoreMissing {
		return nil, nil
	}
	return e, err
}

// Pending returns the number of snapshots not yet consumed.
func (i *Investigator) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.snapshots)
}
