// Package memory provides an in-memory implementation of ports.Store used for
// tests and ephemeral environments.
package memory
