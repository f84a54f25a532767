// Package lazy defers work that needs an entity type until the type is ready.
package lazy

import (
	"log/slog"
	"sync"

	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
)

// AnyType queues an operation for the next readiness event of any type.
const AnyType = "*"

// Operation runs once its type is ready. Extra arguments travel in the closure.
type Operation func(schema *domain.Schema)

// Resolver holds pending operations keyed by type.
type Resolver struct {
	catalog *catalog.Catalog
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string][]Operation
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger configures a logger for the Resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver subscribed to the readiness signal of cat.
func New(cat *catalog.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog: cat,
		logger:  logging.NewNop(),
		pending: make(map[string][]Operation),
	}
	for _, opt := range opts {
		opt(r)
	}
	cat.OnReady(r.TypeReady)
	return r
}

// Resolve runs op synchronously if identifier names a ready type and
// reports true. Otherwise op is queued until the type becomes ready.
func (r *Resolver) Resolve(identifier string, op Operation) bool {
	if schema, ok := r.catalog.Lookup(identifier); ok {
		op(schema)
		return true
	}

	r.mu.Lock()
	// The type may have become ready since the lookup; the drain for it
	// would already have run.
	if schema, ok := r.catalog.Lookup(identifier); ok {
		r.mu.Unlock()
		op(schema)
		return true
	}
	key := catalog.Key(identifier)
	r.pending[key] = append(r.pending[key], op)
	r.mu.Unlock()

	r.logger.Debug("Deferred until type is ready", "type", identifier)
	return false
}

// TypeReady drains the operations waiting for schema, then those waiting
// for AnyType, each group in enqueue order. Operations queued while
// draining wait for the next readiness event.
func (r *Resolver) TypeReady(schema *domain.Schema) {
	key := catalog.Key(schema.Name)

	r.mu.Lock()
	ops := append(r.pending[key], r.pending[AnyType]...)
	delete(r.pending, key)
	delete(r.pending, AnyType)
	r.mu.Unlock()

	if len(ops) > 0 {
		r.logger.Debug("Draining deferred operations", "type", schema.Name, "count", len(ops))
	}
	for _, op := range ops {
		op(schema)
	}
}

// Pending returns the number of operations waiting for identifier.
func (r *Resolver) Pending(identifier string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending[catalog.Key(identifier)])
}

// Len returns the number of operations waiting for any type.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ops := range r.pending {
		n += len(ops)
	}
	return n
}
