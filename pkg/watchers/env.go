package watchers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/broker"
	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/lazy"
	"github.com/aretw0/observer/pkg/observability"
	"github.com/aretw0/observer/pkg/ports"
	"github.com/aretw0/observer/pkg/registry"
)

// Callback is invoked when a watched attribute changes. obj is the freshest
// obtainable state of the watched entity.
type Callback func(ctx context.Context, sender Watcher, obj *domain.Entity, attr string)

// Env bundles the collaborators every watcher needs.
type Env struct {
	Catalog  *catalog.Catalog
	Graph    ports.Graph
	Broker   *broker.Broker
	Resolver *lazy.Resolver
	Registry *registry.Registry
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithLogger configures the logger shared by the watchers.
func WithLogger(logger *slog.Logger) EnvOption {
	return func(e *Env) {
		e.Logger = logger
	}
}

// WithMetrics records watcher activity in m.
func WithMetrics(m *observability.Metrics) EnvOption {
	return func(e *Env) {
		e.Metrics = m
	}
}

// WithRegistry uses reg instead of a fresh registry.
func WithRegistry(reg *registry.Registry) EnvOption {
	return func(e *Env) {
		e.Registry = reg
	}
}

// NewEnv wires a Broker over hooks and a Resolver over cat.
func NewEnv(cat *catalog.Catalog, graph ports.Graph, hooks ports.HookSource, opts ...EnvOption) *Env {
	env := &Env{
		Catalog: cat,
		Graph:   graph,
		Logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.Registry == nil {
		env.Registry = registry.NewRegistry()
	}
	env.Broker = broker.New(hooks, broker.WithLogger(env.Logger))
	env.Resolver = lazy.New(cat, lazy.WithLogger(env.Logger))
	return env
}

// Target is what a watcher observes: every entity of a type, or one identity.
type Target struct {
	Type   string
	Entity *domain.Entity
}

// ForType targets every entity of the type.
func ForType(name string) Target {
	return Target{Type: name}
}

// ForEntity targets one persisted entity. It returns
// domain.ErrIdentityRequired if e has never been saved.
func ForEntity(e *domain.Entity) (Target, error) {
	if !e.HasIdentity() {
		return Target{}, domain.ErrIdentityRequired
	}
	return Target{Type: e.Type, Entity: e}, nil
}

// IsInstance reports whether the target is a single identity.
func (t Target) IsInstance() bool {
	return t.Entity != nil
}

// Matches reports whether pk is covered by the target.
func (t Target) Matches(pk domain.PK) bool {
	return t.Entity == nil || t.Entity.PK == pk
}

func (t Target) String() string {
	if t.Entity != nil {
		return t.Entity.Ref().String()
	}
	return t.Type
}

func (t Target) validate() error {
	if t.Type == "" {
		return fmt.Errorf("watch target requires a type")
	}
	if t.Entity != nil && !t.Entity.HasIdentity() {
		return domain.ErrIdentityRequired
	}
	return nil
}
