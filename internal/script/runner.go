package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/aretw0/observer"
	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/observability"
	"github.com/aretw0/observer/pkg/ports"
	"github.com/aretw0/observer/pkg/registry"
	"github.com/aretw0/observer/pkg/session"
	"github.com/aretw0/observer/pkg/watchers"
)

// Runner replays scripts.
type Runner struct {
	output         io.Writer
	logger         *slog.Logger
	metrics        *observability.Metrics
	registry       *registry.Registry
	defaultWatcher string
	sessionOpts    []session.Option
}

// Option configures the Runner.
type Option func(*Runner)

// WithOutput sets where callback lines are written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.output = w
	}
}

// WithLogger configures a logger for the Runner and everything it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records watcher activity in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRegistry installs the script watches in reg.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Runner) {
		r.registry = reg
	}
}

// WithDefaultWatcher selects the watcher used when a watch names none.
func WithDefaultWatcher(kind string) Option {
	return func(r *Runner) {
		r.defaultWatcher = kind
	}
}

// WithSessionOptions passes options to the session manager, such as a
// distributed locker.
func WithSessionOptions(opts ...session.Option) Option {
	return func(r *Runner) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// NewRunner creates a Runner writing to io.Discard unless configured.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		output:         io.Discard,
		logger:         logging.NewNop(),
		defaultWatcher: observer.WatcherComplex,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is what a replay leaves behind.
type Result struct {
	Observer  *observer.Observer
	Session   *session.Manager
	Catalog   *catalog.Catalog
	Callbacks int64
}

type replay struct {
	*Runner
	obs       *observer.Observer
	cat       *catalog.Catalog
	mgr       *session.Manager
	aliases   map[string]*domain.Entity
	watches   map[string]watchers.Watcher
	callbacks atomic.Int64
}

// Run replays s against store. Watches stay installed afterwards; call
// Result.Observer.UnwatchAll to release them.
func (r *Runner) Run(ctx context.Context, s *Script, store ports.Store) (*Result, error) {
	cat := catalog.New(catalog.WithLogger(r.logger))
	mgr := session.NewManager(store, cat, append([]session.Option{session.WithLogger(r.logger)}, r.sessionOpts...)...)

	opts := []observer.Option{
		observer.WithLogger(r.logger),
		observer.WithMetrics(r.metrics),
		observer.WithDefaultWatcher(r.defaultWatcher),
	}
	if r.registry != nil {
		opts = append(opts, observer.WithRegistry(r.registry))
	}
	obs, err := observer.New(cat, mgr, mgr, opts...)
	if err != nil {
		return nil, err
	}

	rp := &replay{
		Runner:  r,
		obs:     obs,
		cat:     cat,
		mgr:     mgr,
		aliases: make(map[string]*domain.Entity),
		watches: make(map[string]watchers.Watcher),
	}
	result := func() *Result {
		return &Result{Observer: obs, Session: mgr, Catalog: cat, Callbacks: rp.callbacks.Load()}
	}

	for _, spec := range s.Watches {
		if err := rp.install(ctx, spec, watchers.WithDeferUnknown(true)); err != nil {
			return result(), err
		}
	}
	for _, spec := range s.Schemas {
		if err := cat.Register(spec.Schema()); err != nil {
			return result(), err
		}
	}
	for i, step := range s.Steps {
		if err := rp.apply(ctx, step); err != nil {
			return result(), fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	r.logger.Info("Replay finished",
		"steps", len(s.Steps),
		"watchers", len(obs.Watchers()),
		"callbacks", rp.callbacks.Load(),
	)
	return result(), nil
}

func (rp *replay) callback(name string) watchers.Callback {
	return func(ctx context.Context, sender watchers.Watcher, obj *domain.Entity, attr string) {
		rp.callbacks.Add(1)
		fmt.Fprintln(rp.output, strings.TrimSpace(fmt.Sprintf("%s %s %s", name, obj.Ref(), attr)))
	}
}

func (rp *replay) install(ctx context.Context, spec WatchSpec, extra ...watchers.Option) error {
	if _, exists := rp.watches[spec.Name]; exists {
		return fmt.Errorf("watch %s already installed", spec.Name)
	}

	target := watchers.ForType(spec.Type)
	if spec.Ref != "" {
		e, err := rp.lookup(spec.Ref)
		if err != nil {
			return err
		}
		if target, err = watchers.ForEntity(e); err != nil {
			return err
		}
	}

	opts := append([]watchers.Option(nil), extra...)
	if len(spec.Include) > 0 {
		opts = append(opts, watchers.WithInclude(spec.Include...))
	}
	if len(spec.Exclude) > 0 {
		opts = append(opts, watchers.WithExclude(spec.Exclude...))
	}
	if spec.CallOnCreated != nil {
		opts = append(opts, watchers.WithCallOnCreated(*spec.CallOnCreated))
	}

	cb := rp.callback(spec.Name)
	env := rp.obs.Env()
	var (
		w   watchers.Watcher
		err error
	)
	switch strings.ToLower(spec.Watcher) {
	case "":
		w, err = rp.obs.Watch(ctx, target, spec.Attr, cb, opts...)
	case "model":
		if !target.IsInstance() {
			return fmt.Errorf("watch %s: model watches need a ref", spec.Name)
		}
		w, err = rp.obs.WatchModel(ctx, target.Entity, cb, opts...)
	default:
		w, err = build(env, spec.Watcher, target, spec.Attr, cb, opts)
		if err == nil {
			err = w.Watch(ctx)
		}
	}
	if err != nil {
		return fmt.Errorf("watch %s: %w", spec.Name, err)
	}

	rp.watches[spec.Name] = w
	rp.logger.Debug("Watch installed", "name", spec.Name, "kind", w.Kind(), "state", w.State().String())
	return nil
}

func build(env *watchers.Env, kind string, target watchers.Target, attr string, cb watchers.Callback, opts []watchers.Option) (watchers.Watcher, error) {
	switch strings.ToLower(kind) {
	case "value":
		return watchers.NewValueWatcher(env, target, attr, cb, opts...)
	case "related":
		return watchers.NewRelatedWatcher(env, target, attr, cb, opts...)
	case "many_related":
		return watchers.NewManyRelatedWatcher(env, target, attr, cb, opts...)
	case "generic_related":
		return watchers.NewGenericRelatedWatcher(env, target, attr, cb, opts...)
	case "auto":
		return watchers.NewAutoWatcher(env, target, attr, cb, opts...)
	case "complex":
		return watchers.NewComplexWatcher(env, target, attr, cb, opts...)
	}
	return nil, fmt.Errorf("unknown watcher %q", kind)
}

func (rp *replay) apply(ctx context.Context, step Step) error {
	switch {
	case step.Create != nil:
		m := step.Create
		if _, ok := rp.cat.Lookup(m.Type); !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownType, m.Type)
		}
		fields, err := rp.resolve(m.Fields)
		if err != nil {
			return err
		}
		e := domain.NewEntity(m.Type, fields)
		if err := rp.mgr.Save(ctx, e); err != nil {
			return err
		}
		if m.As != "" {
			rp.aliases[m.As] = e
		}
		return nil

	case step.Update != nil:
		e, err := rp.current(ctx, step.Update.Ref)
		if err != nil {
			return err
		}
		fields, err := rp.resolve(step.Update.Fields)
		if err != nil {
			return err
		}
		for k, v := range fields {
			e.Set(k, v)
		}
		if err := rp.mgr.Save(ctx, e); err != nil {
			return err
		}
		rp.aliases[step.Update.Ref] = e
		return nil

	case step.Delete != nil:
		e, err := rp.lookup(step.Delete.Ref)
		if err != nil {
			return err
		}
		return rp.mgr.Delete(ctx, e)

	case step.Add != nil, step.Remove != nil:
		m, add := step.Add, true
		if m == nil {
			m, add = step.Remove, false
		}
		e, err := rp.lookup(m.Ref)
		if err != nil {
			return err
		}
		pks := make([]domain.PK, 0, len(m.Refs))
		for _, ref := range m.Refs {
			other, err := rp.lookup(ref)
			if err != nil {
				return err
			}
			pks = append(pks, other.PK)
		}
		if add {
			return rp.mgr.Add(ctx, e, m.Attr, pks...)
		}
		return rp.mgr.Remove(ctx, e, m.Attr, pks...)

	case step.Clear != nil:
		e, err := rp.lookup(step.Clear.Ref)
		if err != nil {
			return err
		}
		return rp.mgr.Clear(ctx, e, step.Clear.Attr)

	case step.Watch != nil:
		return rp.install(ctx, *step.Watch)

	case step.Unwatch != "":
		w, ok := rp.watches[step.Unwatch]
		if !ok {
			return fmt.Errorf("no watch named %s", step.Unwatch)
		}
		w.Unwatch()
		delete(rp.watches, step.Unwatch)
		return nil
	}
	return fmt.Errorf("empty step")
}

func (rp *replay) lookup(alias string) (*domain.Entity, error) {
	e, ok := rp.aliases[alias]
	if !ok {
		return nil, fmt.Errorf("unknown entity alias %q", alias)
	}
	return e, nil
}

// current reloads an aliased entity so updates start from persisted state.
func (rp *replay) current(ctx context.Context, alias string) (*domain.Entity, error) {
	e, err := rp.lookup(alias)
	if err != nil {
		return nil, err
	}
	return rp.mgr.Load(ctx, e.Type, e.PK)
}

// resolve replaces "@alias" values with the aliased primary key.
func (rp *replay) resolve(fields map[string]any) (domain.Record, error) {
	out := make(domain.Record, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && strings.HasPrefix(s, "@") {
			e, err := rp.lookup(strings.TrimPrefix(s, "@"))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", k, err)
			}
			v = e.PK
		}
		out[k] = v
	}
	return out, nil
}
