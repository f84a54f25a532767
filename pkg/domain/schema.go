package domain

import (
	"fmt"
	"strings"
)

// RelationshipKind classifies how an attribute reaches its value.
type RelationshipKind int

const (
	// Scalar is a plain value stored on the entity.
	Scalar RelationshipKind = iota
	// ToOne is a forward reference holding the target primary key.
	ToOne
	// ReverseToOne is the reverse side of a unique ToOne reference.
	ReverseToOne
	// ToMany is the reverse side of a non-unique ToOne reference.
	ToMany
	// ManyToMany is a collection stored in a join ("through") relation.
	ManyToMany
	// GenericToOne is a polymorphic (type, id) reference.
	GenericToOne
	// GenericToMany is the reverse side of a GenericToOne reference.
	GenericToMany
)

var kindNames = map[RelationshipKind]string{
	Scalar:        "scalar",
	ToOne:         "to_one",
	ReverseToOne:  "reverse_to_one",
	ToMany:        "to_many",
	ManyToMany:    "many_to_many",
	GenericToOne:  "generic_to_one",
	GenericToMany: "generic_to_many",
}

func (k RelationshipKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts the textual form of a kind back into a RelationshipKind.
func ParseKind(s string) (RelationshipKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Scalar, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return Scalar, fmt.Errorf("unknown relationship kind %q", s)
}

// IsRelational reports whether values of this kind are other entities.
func (k RelationshipKind) IsRelational() bool {
	return k != Scalar
}

// IsConcrete reports whether values of this kind are stored on the entity itself.
func (k RelationshipKind) IsConcrete() bool {
	return k == Scalar || k == ToOne
}

// Field declares an attribute of a Schema.
type Field struct {
	Name string
	Kind RelationshipKind

	// Target is the related type name (ToOne, ManyToMany, GenericToMany).
	Target string
	// RelatedName is the accessor name installed on Target for the reverse side.
	RelatedName string
	// Through names the join relation of a ManyToMany field.
	Through string
	// Unique makes a ToOne field one-to-one.
	Unique bool
	// Nullable allows a ToOne field to be empty.
	Nullable bool

	// TypeField and IDField name the scalar fields holding a polymorphic
	// reference. For GenericToOne they live on the declaring type, for
	// GenericToMany on Target.
	TypeField string
	IDField   string
}

// Schema describes an entity type.
type Schema struct {
	Name   string
	Fields []Field
}

// Field returns the declared field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ConcreteFields returns the names of the fields stored on the entity, in
// declaration order.
func (s *Schema) ConcreteFields() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Kind.IsConcrete() {
			names = append(names, f.Name)
		}
	}
	return names
}

// JoinSide selects one end of a ManyToMany join relation.
type JoinSide int

const (
	// SourceSide is the type declaring the ManyToMany field.
	SourceSide JoinSide = iota
	// TargetSide is the type named by the field's Target.
	TargetSide
)

// Opposite returns the other end of the join.
func (s JoinSide) Opposite() JoinSide {
	if s == SourceSide {
		return TargetSide
	}
	return SourceSide
}

func (s JoinSide) String() string {
	if s == SourceSide {
		return "src"
	}
	return "dst"
}

// Relation is a resolved attribute descriptor, seen from Owner.
type Relation struct {
	Owner string
	Name  string
	Kind  RelationshipKind

	// Related is the type on the other side. Empty for GenericToOne.
	Related string
	// RelatedAttr is the accessor on Related pointing back to Owner.
	RelatedAttr string
	// Column is the concrete field holding the reference. It lives on
	// Owner for ToOne and on Related for ReverseToOne and ToMany.
	Column string
	// Through and Side describe the join for ManyToMany; Side is the end
	// Owner occupies.
	Through string
	Side    JoinSide
	// Reversed is set when Owner is not the declaring side.
	Reversed bool
	Nullable bool

	// TypeField and IDField name the polymorphic columns. They live on
	// Owner for GenericToOne and on Related for GenericToMany.
	TypeField string
	IDField   string
}

// MembershipColumns returns the fields of Related whose modification can
// change which owners a related row belongs to.
func (r Relation) MembershipColumns() []string {
	switch r.Kind {
	case ReverseToOne, ToMany:
		return []string{r.Column}
	case GenericToMany:
		return []string{r.TypeField, r.IDField}
	}
	return nil
}
