package observer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/observability"
	"github.com/aretw0/observer/pkg/ports"
	"github.com/aretw0/observer/pkg/registry"
	"github.com/aretw0/observer/pkg/watchers"
)

// Default watcher kinds accepted by WithDefaultWatcher.
const (
	WatcherComplex = "complex"
	WatcherAuto    = "auto"
)

// Observer is the high-level entry point of the library.
// It owns the registry of live watchers and builds watchers of the
// configured default kind.
type Observer struct {
	env         *watchers.Env
	defaultKind string
	logger      *slog.Logger
	metrics     *observability.Metrics
	registry    *registry.Registry
}

// Option defines a functional option for configuring the Observer.
type Option func(*Observer)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// WithMetrics records watcher activity in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Observer) {
		o.metrics = m
	}
}

// WithRegistry shares reg instead of creating a private registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(o *Observer) {
		o.registry = reg
	}
}

// WithDefaultWatcher selects the kind built by Watch and Declare:
// WatcherComplex (default) or WatcherAuto.
func WithDefaultWatcher(kind string) Option {
	return func(o *Observer) {
		o.defaultKind = kind
	}
}

// New creates an Observer over the given type catalog and persistence
// substrate.
func New(cat *catalog.Catalog, graph ports.Graph, hooks ports.HookSource, opts ...Option) (*Observer, error) {
	o := &Observer{defaultKind: WatcherComplex}
	for _, opt := range opts {
		opt(o)
	}
	if o.defaultKind != WatcherComplex && o.defaultKind != WatcherAuto {
		return nil, fmt.Errorf("unknown default watcher %q (want %s or %s)", o.defaultKind, WatcherComplex, WatcherAuto)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.registry == nil {
		o.registry = registry.NewRegistry()
	}

	o.env = watchers.NewEnv(cat, graph, hooks,
		watchers.WithLogger(o.logger),
		watchers.WithMetrics(o.metrics),
		watchers.WithRegistry(o.registry),
	)
	return o, nil
}

// Watch builds a watcher of the default kind on target.attr and binds it.
// The watcher stays pending if a type it needs is not registered yet.
func (o *Observer) Watch(ctx context.Context, target watchers.Target, attr string, cb watchers.Callback, opts ...watchers.Option) (watchers.Watcher, error) {
	w, err := o.build(target, attr, cb, opts)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// WatchEntity is Watch for a single persisted entity.
func (o *Observer) WatchEntity(ctx context.Context, e *domain.Entity, attr string, cb watchers.Callback, opts ...watchers.Option) (watchers.Watcher, error) {
	target, err := watchers.ForEntity(e)
	if err != nil {
		return nil, err
	}
	return o.Watch(ctx, target, attr, cb, opts...)
}

// WatchModel reports any change of e, and its deletion.
func (o *Observer) WatchModel(ctx context.Context, e *domain.Entity, cb watchers.Callback, opts ...watchers.Option) (*watchers.ModelWatcher, error) {
	w, err := watchers.NewModelWatcher(o.env, e, cb, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Watch(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Declare watches attr on every entity of typeName. It may be called before
// the type is registered, or before the type declaring a reverse accessor
// is; binding then happens on a later registration, and a resolution
// failure at that point is logged rather than returned.
func (o *Observer) Declare(typeName, attr string, cb watchers.Callback, opts ...watchers.Option) (watchers.Watcher, error) {
	opts = append([]watchers.Option{watchers.WithDeferUnknown(true)}, opts...)
	w, err := o.Watch(context.Background(), watchers.ForType(typeName), attr, cb, opts...)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("Declared watch", "type", typeName, "attr", attr, "state", w.State().String())
	return w, nil
}

// UnwatchAll tears down every watcher in the registry and returns how many
// were released.
func (o *Observer) UnwatchAll() int {
	n := o.registry.UnwatchAll()
	o.logger.Debug("Unwatched all", "count", n)
	return n
}

// Watchers describes the live top-level watchers, in registration order.
func (o *Observer) Watchers() []watchers.Info {
	entries := o.registry.List()
	out := make([]watchers.Info, 0, len(entries))
	for _, e := range entries {
		if w, ok := e.(watchers.Watcher); ok {
			out = append(out, watchers.Describe(w))
		}
	}
	return out
}

// Registry returns the registry owned by the Observer.
func (o *Observer) Registry() *registry.Registry {
	return o.registry
}

// Env returns the collaborators shared by the watchers, for building
// watchers of a specific kind.
func (o *Observer) Env() *watchers.Env {
	return o.env
}

func (o *Observer) build(target watchers.Target, attr string, cb watchers.Callback, opts []watchers.Option) (watchers.Watcher, error) {
	if o.defaultKind == WatcherAuto {
		return watchers.NewAutoWatcher(o.env, target, attr, cb, opts...)
	}
	return watchers.NewComplexWatcher(o.env, target, attr, cb, opts...)
}
