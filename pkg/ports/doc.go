/*
Package ports defines the driven ports (interfaces) of the observer engine.

These interfaces decouple the watchers from the persistence substrate, allowing
them to work with any storage backend and commit pipeline.

# Key Interfaces

  - Store: persistence backend for entity rows and join links (memory, Redis, SQLite).
  - Graph: read access used by watchers to load pre-images and traverse relations.
  - HookSource: the commit-hook substrate (before/after commit, after delete, collection changes).
  - DistributedLocker: distributed locking for mutations of one identity across replicas.
*/
package ports
