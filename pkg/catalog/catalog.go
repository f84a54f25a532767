// Package catalog holds the static type metadata of the observed entities and
// broadcasts when a type becomes ready.
package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/domain"
)

// ReadyFunc is invoked once for every schema registered in the catalog.
type ReadyFunc func(schema *domain.Schema)

// Catalog stores schemas and resolves attribute descriptors.
type Catalog struct {
	mu        sync.RWMutex
	schemas   map[string]*domain.Schema
	listeners []ReadyFunc
	logger    *slog.Logger
}

// Option configures the Catalog.
type Option func(*Catalog)

// WithLogger configures a logger for the Catalog.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		schemas: make(map[string]*domain.Schema),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the lookup key of a type identifier.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// OnReady subscribes fn to type readiness. It is not replayed for types
// registered before the subscription.
func (c *Catalog) OnReady(fn ReadyFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Register adds a schema and fires the readiness signal for it.
// Registering the same type twice returns domain.ErrDuplicateType.
func (c *Catalog) Register(schema domain.Schema) error {
	if schema.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	seen := make(map[string]bool, len(schema.Fields))
	for _, f := range schema.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field name is required", schema.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %q", schema.Name, f.Name)
		}
		seen[f.Name] = true
		if err := validateField(f); err != nil {
			return fmt.Errorf("schema %s: %w", schema.Name, err)
		}
	}

	s := schema
	s.Fields = append([]domain.Field(nil), schema.Fields...)

	c.mu.Lock()
	key := Key(s.Name)
	if _, exists := c.schemas[key]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrDuplicateType, s.Name)
	}
	c.schemas[key] = &s
	listeners := append([]ReadyFunc(nil), c.listeners...)
	c.mu.Unlock()

	c.logger.Debug("Type ready", "type", s.Name)
	for _, fn := range listeners {
		fn(&s)
	}
	return nil
}

func validateField(f domain.Field) error {
	switch f.Kind {
	case domain.ToOne:
		if f.Target == "" {
			return fmt.Errorf("field %q: to_one requires a target", f.Name)
		}
	case domain.ManyToMany:
		if f.Target == "" || f.Through == "" {
			return fmt.Errorf("field %q: many_to_many requires a target and a through relation", f.Name)
		}
	case domain.GenericToOne:
		if f.TypeField == "" || f.IDField == "" {
			return fmt.Errorf("field %q: generic_to_one requires type and id fields", f.Name)
		}
	case domain.GenericToMany:
		if f.Target == "" {
			return fmt.Errorf("field %q: generic_to_many requires a target", f.Name)
		}
	case domain.ReverseToOne, domain.ToMany:
		return fmt.Errorf("field %q: %s accessors are derived from the forward declaration", f.Name, f.Kind)
	}
	return nil
}

// Lookup returns the schema registered under name.
func (c *Catalog) Lookup(name string) (*domain.Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[Key(name)]
	return s, ok
}

// IsReady reports whether name has been registered.
func (c *Catalog) IsReady(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Names returns the registered type names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.schemas))
	for _, s := range c.schemas {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
