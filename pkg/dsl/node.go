package dsl

import "github.com/aretw0/observer/pkg/domain"

// TypeBuilder provides a fluent API for declaring the fields of a type.
// Modifiers such as Unique or Nullable apply to the last declared field.
type TypeBuilder struct {
	schema  domain.Schema
	builder *Builder
}

func (t *TypeBuilder) add(f domain.Field) *TypeBuilder {
	t.schema.Fields = append(t.schema.Fields, f)
	return t
}

func (t *TypeBuilder) last() *domain.Field {
	if len(t.schema.Fields) == 0 {
		return &domain.Field{}
	}
	return &t.schema.Fields[len(t.schema.Fields)-1]
}

// Field declares stored scalar fields.
func (t *TypeBuilder) Field(names ...string) *TypeBuilder {
	for _, name := range names {
		t.add(domain.Field{Name: name})
	}
	return t
}

// ToOne declares a reference to target, stored as the target primary key.
func (t *TypeBuilder) ToOne(name, target string) *TypeBuilder {
	return t.add(domain.Field{Name: name, Kind: domain.ToOne, Target: target})
}

// ManyToMany declares a collection of target joined through the named relation.
func (t *TypeBuilder) ManyToMany(name, target, through string) *TypeBuilder {
	return t.add(domain.Field{Name: name, Kind: domain.ManyToMany, Target: target, Through: through})
}

// GenericToOne declares a polymorphic reference over the (typeField, idField) pair.
func (t *TypeBuilder) GenericToOne(name, typeField, idField string) *TypeBuilder {
	return t.add(domain.Field{Name: name, Kind: domain.GenericToOne, TypeField: typeField, IDField: idField})
}

// GenericToMany declares the collection of target rows pointing at this type.
func (t *TypeBuilder) GenericToMany(name, target string) *TypeBuilder {
	return t.add(domain.Field{Name: name, Kind: domain.GenericToMany, Target: target})
}

// RelatedName names the reverse accessor derived on the target type.
func (t *TypeBuilder) RelatedName(name string) *TypeBuilder {
	t.last().RelatedName = name
	return t
}

// Unique makes a to-one reference one-to-one; its reverse is single valued.
func (t *TypeBuilder) Unique() *TypeBuilder {
	t.last().Unique = true
	return t
}

// Nullable allows the reference to be unset.
func (t *TypeBuilder) Nullable() *TypeBuilder {
	t.last().Nullable = true
	return t
}

// Type continues with another type of the same builder.
func (t *TypeBuilder) Type(name string) *TypeBuilder {
	return t.builder.Type(name)
}

// Build returns a copy of the declared schema.
func (t *TypeBuilder) Build() domain.Schema {
	s := t.schema
	s.Fields = append([]domain.Field(nil), t.schema.Fields...)
	return s
}
