package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/huandu/go-clone"
	"github.com/mitchellh/mapstructure"
)

// PK is the primary key of a persisted entity.
// The zero value means the entity has never been persisted.
type PK int64

// Record holds the persisted field values of an entity, keyed by field name.
type Record map[string]any

// Ref identifies an entity by type and primary key.
type Ref struct {
	Type string `json:"type"`
	PK   PK     `json:"pk"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.PK)
}

// Entity is an identity-bearing object managed by the persistence layer.
type Entity struct {
	Type   string `json:"type"`
	PK     PK     `json:"pk"`
	Fields Record `json:"fields"`
}

// NewEntity creates an unsaved entity of the given type.
// Field values are normalized the same way Set does.
func NewEntity(typeName string, fields Record) *Entity {
	e := &Entity{Type: typeName, Fields: make(Record, len(fields))}
	for k, v := range fields {
		e.Fields[k] = Normalize(v)
	}
	return e
}

// HasIdentity reports whether the entity has been assigned a primary key.
func (e *Entity) HasIdentity() bool {
	return e != nil && e.PK != 0
}

// Ref returns the (type, pk) reference of the entity.
func (e *Entity) Ref() Ref {
	return Ref{Type: e.Type, PK: e.PK}
}

// Get returns the value of a field, or nil when it is unset.
func (e *Entity) Get(name string) any {
	if e == nil || e.Fields == nil {
		return nil
	}
	return e.Fields[name]
}

// Set assigns a field value. Numeric values are normalized so that values
// read back from JSON-backed stores compare equal to in-memory ones.
func (e *Entity) Set(name string, value any) *Entity {
	if e.Fields == nil {
		e.Fields = make(Record)
	}
	e.Fields[name] = Normalize(value)
	return e
}

// SetRef points a to-one field at another entity, or clears it when target is nil.
func (e *Entity) SetRef(name string, target *Entity) *Entity {
	if target == nil {
		return e.Set(name, nil)
	}
	return e.Set(name, target.PK)
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := &Entity{Type: e.Type, PK: e.PK}
	if e.Fields != nil {
		c.Fields = clone.Clone(e.Fields).(Record)
	}
	return c
}

// Decode copies the entity fields onto out, which must be a pointer to a struct.
// Struct fields are matched using the "observer" tag, falling back to the field name.
func (e *Entity) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "observer",
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(e.Fields)); err != nil {
		return fmt.Errorf("failed to decode %s: %w", e.Ref(), err)
	}
	return nil
}

// AsPK converts a stored reference value into a primary key.
// It returns false for nil or non-numeric values.
func AsPK(v any) (PK, bool) {
	switch n := Normalize(v).(type) {
	case int64:
		return PK(n), n != 0
	case PK:
		return n, n != 0
	case float64:
		if n == math.Trunc(n) && n != 0 {
			return PK(n), true
		}
	}
	return 0, false
}

// Normalize converts numeric values into canonical int64/float64 forms,
// descending into slices and maps.
func Normalize(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case PK:
		return int64(n)
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return normalizeFloat(float64(n))
	case float64:
		return normalizeFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return normalizeComposite(v)
}

// normalizeComposite folds slices, arrays and string-keyed maps into the
// []any and map[string]any shapes a JSON decoder produces, normalizing
// every element.
func normalizeComposite(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}

// normalizeFloat folds integral floats into int64 so that JSON round trips
// of integer values (which decode as float64) stay comparable.
func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

// NormalizeRecord normalizes every value of r in place and returns it.
func NormalizeRecord(r Record) Record {
	for k, v := range r {
		r[k] = Normalize(v)
	}
	return r
}

// Equal reports whether two field values are the same after normalization.
func Equal(a, b any) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}
