package domain

import "context"

// HookKind names a commit hook fired by the persistence substrate.
type HookKind string

const (
	BeforeCommit           HookKind = "before_commit"
	AfterCommit            HookKind = "after_commit"
	AfterDelete            HookKind = "after_delete"
	BeforeCollectionChange HookKind = "before_collection_change"
	AfterCollectionChange  HookKind = "after_collection_change"
)

// CollectionAction is the membership operation applied to a join relation.
type CollectionAction string

const (
	ActionAdd    CollectionAction = "add"
	ActionRemove CollectionAction = "remove"
	ActionClear  CollectionAction = "clear"
)

// Event is the payload delivered to hook receivers.
type Event struct {
	Kind HookKind
	// Sender is the entity type for commit and delete hooks, and the
	// through name for collection hooks.
	Sender   string
	Instance *Entity

	// Created is set on AfterCommit when the entity was inserted.
	Created bool
	// Raw is set for fixture loads; relational watchers ignore such events.
	Raw bool

	// Collection change fields. Instance is the entity whose collection
	// changed; AffectedIDs are the primary keys on the opposite side.
	Action      CollectionAction
	Through     string
	Side        JoinSide
	AffectedIDs []PK
}

// Receiver handles a hook event.
type Receiver func(ctx context.Context, ev *Event)
