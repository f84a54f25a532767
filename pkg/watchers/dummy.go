package watchers

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// DummyWatcher stands in for the member watcher of an empty nullable
// reference. It never calls back.
type DummyWatcher struct {
	id     string
	target Target
	attr   string
	bound  atomic.Bool
}

// NewDummyWatcher creates a placeholder for target.attr.
func NewDummyWatcher(target Target, attr string) *DummyWatcher {
	return &DummyWatcher{id: "dummy-" + uuid.NewString(), target: target, attr: attr}
}

func (w *DummyWatcher) ID() string     { return w.id }
func (w *DummyWatcher) Kind() string   { return "dummy" }
func (w *DummyWatcher) Target() Target { return w.target }
func (w *DummyWatcher) Attr() string   { return w.attr }

func (w *DummyWatcher) State() State {
	if w.bound.Load() {
		return Bound
	}
	return Unbound
}

func (w *DummyWatcher) Watch(ctx context.Context, opts ...Option) error {
	w.bound.Store(true)
	return nil
}

func (w *DummyWatcher) Unwatch() {
	w.bound.Store(false)
}
