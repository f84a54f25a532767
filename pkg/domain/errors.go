package domain

import "errors"

// ErrIdentityRequired is returned when a watcher is constructed for an entity without a primary key.
var ErrIdentityRequired = errors.New("entity must be persisted before it can be watched")

// ErrUnknownAttribute is returned when an attribute does not resolve to a field or relation of the type.
var ErrUnknownAttribute = errors.New("unknown attribute")

// ErrNotFound is returned when an entity does not exist in the store.
var ErrNotFound = errors.New("entity not found")

// ErrUnresolvedRelation is returned when a type referenced by a relation has not been registered yet.
var ErrUnresolvedRelation = errors.New("unresolved relation")

// ErrUnknownType is returned when a type name is not registered in the catalog.
var ErrUnknownType = errors.New("unknown type")

// ErrDuplicateType is returned when a schema is registered twice.
var ErrDuplicateType = errors.New("type already registered")
