/*
Package domain contains the data model shared by the observer packages.

It is kept free of I/O: entities, schemas, resolved relation descriptors,
hook events and the sentinel errors used across the module.

# Key Types

  - Entity: an identity-bearing record (type, primary key, fields).
  - Schema and Field: static type metadata, including the RelationshipKind of each attribute.
  - Relation: an attribute resolved from the point of view of one type.
  - Event and Receiver: the commit-hook payload and handler signature.
*/
package domain
