package dsl

import (
	"fmt"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
)

// Builder collects type declarations in declaration order.
type Builder struct {
	order []string
	types map[string]*TypeBuilder
}

// New creates an empty schema builder.
func New() *Builder {
	return &Builder{
		types: make(map[string]*TypeBuilder),
	}
}

// Type starts the declaration of a type.
// If the type already exists, it returns the existing builder.
func (b *Builder) Type(name string) *TypeBuilder {
	key := catalog.Key(name)
	if tb, ok := b.types[key]; ok {
		return tb
	}
	tb := &TypeBuilder{
		schema:  domain.Schema{Name: name},
		builder: b,
	}
	b.types[key] = tb
	b.order = append(b.order, key)
	return tb
}

// Build returns the declared schemas in declaration order.
func (b *Builder) Build() []domain.Schema {
	out := make([]domain.Schema, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.types[key].Build())
	}
	return out
}

// Register adds every declared schema to cat, in declaration order.
// Forward references are allowed; the catalog resolves them lazily.
func (b *Builder) Register(cat *catalog.Catalog) error {
	for _, s := range b.Build() {
		if err := cat.Register(s); err != nil {
			return fmt.Errorf("failed to register %s: %w", s.Name, err)
		}
	}
	return nil
}
