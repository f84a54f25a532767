// Package sqlite provides a ports.Store backed by an embedded SQLite database
// (pure Go driver, no cgo).
package sqlite
