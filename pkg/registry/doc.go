// Package registry tracks live watcher handles for bulk teardown.
package registry
