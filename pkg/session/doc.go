/*
Package session implements the commit pipeline the watchers observe.

The Manager fronts a ports.Store: it assigns identities, serializes writes to
the same entity (optionally across replicas through a ports.DistributedLocker)
and fires the commit hooks in a fixed order:

	Save:   before_commit -> write -> after_commit (Created on insert)
	Delete: write -> after_delete
	Add/Remove/Clear: before_collection_change -> links -> after_collection_change

It also implements ports.Graph (reads) and ports.HookSource (bindings), so
a single Manager is enough to run the watchers against any store adapter.
*/
package session
