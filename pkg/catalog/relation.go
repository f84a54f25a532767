package catalog

import (
	"fmt"
	"sort"

	"github.com/aretw0/observer/pkg/domain"
)

// UnresolvedError reports that resolving an attribute needs a type that has
// not been registered yet.
type UnresolvedError struct {
	Type string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrUnresolvedRelation, e.Type)
}

func (e *UnresolvedError) Unwrap() error {
	return domain.ErrUnresolvedRelation
}

// Relation resolves attr as seen from the owner type. Declared fields take
// precedence over reverse accessors derived from other types.
func (c *Catalog) Relation(owner, attr string) (domain.Relation, error) {
	schema, ok := c.Lookup(owner)
	if !ok {
		return domain.Relation{}, &UnresolvedError{Type: owner}
	}
	if f, ok := schema.Field(attr); ok {
		return c.forward(schema, f)
	}
	if rel, ok := c.reverse(schema, attr); ok {
		return rel, nil
	}
	return domain.Relation{}, fmt.Errorf("%w: %s.%s", domain.ErrUnknownAttribute, schema.Name, attr)
}

func (c *Catalog) forward(owner *domain.Schema, f domain.Field) (domain.Relation, error) {
	rel := domain.Relation{
		Owner:    owner.Name,
		Name:     f.Name,
		Kind:     f.Kind,
		Nullable: f.Nullable,
	}
	switch f.Kind {
	case domain.Scalar:
		rel.Column = f.Name
	case domain.ToOne:
		target, ok := c.Lookup(f.Target)
		if !ok {
			return rel, &UnresolvedError{Type: f.Target}
		}
		rel.Related = target.Name
		rel.RelatedAttr = f.RelatedName
		rel.Column = f.Name
	case domain.ManyToMany:
		target, ok := c.Lookup(f.Target)
		if !ok {
			return rel, &UnresolvedError{Type: f.Target}
		}
		rel.Related = target.Name
		rel.RelatedAttr = f.RelatedName
		rel.Through = f.Through
		rel.Side = domain.SourceSide
	case domain.GenericToOne:
		rel.TypeField = f.TypeField
		rel.IDField = f.IDField
		rel.Nullable = true
	case domain.GenericToMany:
		target, ok := c.Lookup(f.Target)
		if !ok {
			return rel, &UnresolvedError{Type: f.Target}
		}
		rel.Related = target.Name
		rel.Reversed = true
		rel.TypeField, rel.IDField = f.TypeField, f.IDField
		for _, tf := range target.Fields {
			if tf.Kind != domain.GenericToOne {
				continue
			}
			if rel.TypeField == "" || (tf.TypeField == rel.TypeField && tf.IDField == rel.IDField) {
				rel.RelatedAttr = tf.Name
				rel.TypeField, rel.IDField = tf.TypeField, tf.IDField
				break
			}
		}
		if rel.TypeField == "" || rel.IDField == "" {
			return rel, fmt.Errorf("%w: %s.%s has no polymorphic reference on %s",
				domain.ErrUnknownAttribute, owner.Name, f.Name, target.Name)
		}
	default:
		return rel, fmt.Errorf("%w: %s.%s has unsupported kind %s", domain.ErrUnknownAttribute, owner.Name, f.Name, f.Kind)
	}
	return rel, nil
}

func (c *Catalog) reverse(owner *domain.Schema, attr string) (domain.Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, name := range c.sortedKeysLocked() {
		declaring := c.schemas[name]
		for _, f := range declaring.Fields {
			if f.RelatedName != attr || Key(f.Target) != Key(owner.Name) {
				continue
			}
			rel := domain.Relation{
				Owner:       owner.Name,
				Name:        attr,
				Related:     declaring.Name,
				RelatedAttr: f.Name,
				Reversed:    true,
				Nullable:    true,
			}
			switch f.Kind {
			case domain.ToOne:
				rel.Kind = domain.ToMany
				if f.Unique {
					rel.Kind = domain.ReverseToOne
				}
				rel.Column = f.Name
			case domain.ManyToMany:
				rel.Kind = domain.ManyToMany
				rel.Through = f.Through
				rel.Side = domain.TargetSide
			default:
				continue
			}
			return rel, true
		}
	}
	return domain.Relation{}, false
}

func (c *Catalog) sortedKeysLocked() []string {
	keys := make([]string, 0, len(c.schemas))
	for k := range c.schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
