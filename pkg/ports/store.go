package ports

import (
	"context"

	"github.com/aretw0/observer/pkg/domain"
)

// Store defines the persistence backend holding entity rows and join links.
type Store interface {
	// NextID reserves a new primary key for the given type.
	NextID(ctx context.Context, typeName string) (domain.PK, error)

	// Get retrieves the row of an entity.
	// Returns domain.ErrNotFound if the row does not exist.
	Get(ctx context.Context, typeName string, pk domain.PK) (domain.Record, error)

	// Put inserts or replaces the row of an entity.
	Put(ctx context.Context, typeName string, pk domain.PK, record domain.Record) error

	// Delete removes the row of an entity.
	// Returns domain.ErrNotFound if the row does not exist.
	Delete(ctx context.Context, typeName string, pk domain.PK) error

	// List returns the primary keys of every row of a type, in ascending order.
	List(ctx context.Context, typeName string) ([]domain.PK, error)

	// Link adds (src, dst) to a join relation. Adding an existing pair is a no-op.
	Link(ctx context.Context, through string, src, dst domain.PK) error

	// Unlink removes (src, dst) from a join relation. Removing a missing pair is a no-op.
	Unlink(ctx context.Context, through string, src, dst domain.PK) error

	// Links returns the keys linked to pk, which sits on the given side, in ascending order.
	Links(ctx context.Context, through string, side domain.JoinSide, pk domain.PK) ([]domain.PK, error)

	// Close releases the resources held by the store.
	Close() error
}

// Graph is the read side of the persistence layer used by watchers.
type Graph interface {
	// Load returns the persisted state of an entity.
	// Returns domain.ErrNotFound if the entity does not exist.
	Load(ctx context.Context, typeName string, pk domain.PK) (*domain.Entity, error)

	// Filter returns the entities of a type whose fields equal every value in match.
	Filter(ctx context.Context, typeName string, match domain.Record) ([]*domain.Entity, error)

	// Links returns the keys linked to pk through a join relation.
	Links(ctx context.Context, through string, side domain.JoinSide, pk domain.PK) ([]domain.PK, error)
}

// HookSource is the commit-hook substrate the watchers bind to.
type HookSource interface {
	// Connect binds fn to hooks of the given kind fired by sender ("" for any sender).
	// Connecting an existing (kind, receiverID) pair replaces its handler.
	Connect(kind domain.HookKind, sender string, receiverID string, fn domain.Receiver)

	// Disconnect removes a binding. It returns false if nothing was bound.
	Disconnect(kind domain.HookKind, sender string, receiverID string) bool
}
