/*
Package redis provides Redis-backed implementations of ports.Store and
ports.DistributedLocker.

The store is suitable when several processes share the same entity rows; the
locker serializes commits of the same entity across those processes.
*/
package redis
