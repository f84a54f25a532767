/*
Package investigator implements the snapshot and diff step of change detection.

A mutation is bracketed by two calls:

	inv.Prepare(ctx, e)            // before commit: load and keep the pre-image
	for f := range inv.Investigate(e) { ... } // after commit: changed fields

No pre-image means the entity is being created, so Investigate yields nothing.
*/
package investigator
