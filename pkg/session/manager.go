package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/ports"
)

// Relations resolves attribute descriptors. *catalog.Catalog implements it.
type Relations interface {
	Relation(owner, attr string) (domain.Relation, error)
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager is the commit pipeline in front of a ports.Store. Every mutation
// goes through it, and it fires the commit hooks watchers bind to.
//
// Writes to the same identity are serialized with a per-identity lock (and,
// if configured, a distributed one). Before hooks run inside the lock; after
// hooks run once it is released so callbacks may mutate the same entity again.
type Manager struct {
	store     ports.Store
	relations Relations

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger

	hooks *hookTable
}

var (
	_ ports.Graph      = (*Manager)(nil)
	_ ports.HookSource = (*Manager)(nil)
)

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiration of distributed locks. Defaults to 30s.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager writing to store. relations resolves the
// join relation of collection attributes.
func NewManager(store ports.Store, relations Relations, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		relations: relations,
		locks:     make(map[string]*lockEntry),
		lockTTL:   30 * time.Second,
		logger:    logging.NewNop(),
		hooks:     newHookTable(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SaveOption tweaks a single Save call.
type SaveOption func(*saveConfig)

type saveConfig struct {
	raw bool
}

// Raw marks the save as a fixture load. Relational watchers ignore it.
func Raw() SaveOption {
	return func(c *saveConfig) {
		c.raw = true
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock executes fn while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Save persists e. An entity without identity is inserted and receives a
// fresh primary key. Hooks fire in order: before_commit, write, after_commit.
func (m *Manager) Save(ctx context.Context, e *domain.Entity, opts ...SaveOption) error {
	if e == nil || e.Type == "" {
		return fmt.Errorf("cannot save an entity without a type")
	}
	var cfg saveConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	created := !e.HasIdentity()
	if created {
		m.fire(ctx, &domain.Event{Kind: domain.BeforeCommit, Sender: e.Type, Instance: e, Raw: cfg.raw})
		pk, err := m.store.NextID(ctx, e.Type)
		if err != nil {
			return fmt.Errorf("failed to allocate identity: %w", err)
		}
		e.PK = pk
		if err := m.WithLock(ctx, e.Ref().String(), func(ctx context.Context) error {
			return m.put(ctx, e)
		}); err != nil {
			e.PK = 0
			return err
		}
	} else {
		err := m.WithLock(ctx, e.Ref().String(), func(ctx context.Context) error {
			_, err := m.store.Get(ctx, e.Type, e.PK)
			if errors.Is(err, domain.ErrNotFound) {
				created = true
			} else if err != nil {
				return fmt.Errorf("failed to check existence of %s: %w", e.Ref(), err)
			}
			m.fire(ctx, &domain.Event{Kind: domain.BeforeCommit, Sender: e.Type, Instance: e, Raw: cfg.raw})
			return m.put(ctx, e)
		})
		if err != nil {
			return err
		}
	}

	m.fire(ctx, &domain.Event{Kind: domain.AfterCommit, Sender: e.Type, Instance: e, Created: created, Raw: cfg.raw})
	return nil
}

func (m *Manager) put(ctx context.Context, e *domain.Entity) error {
	fields := e.Fields
	if fields == nil {
		fields = domain.Record{}
	}
	if err := m.store.Put(ctx, e.Type, e.PK, fields); err != nil {
		return fmt.Errorf("failed to save %s: %w", e.Ref(), err)
	}
	return nil
}

// Delete removes e and fires after_delete. It returns domain.ErrNotFound if
// the entity is not persisted.
func (m *Manager) Delete(ctx context.Context, e *domain.Entity) error {
	if !e.HasIdentity() {
		return domain.ErrIdentityRequired
	}
	err := m.WithLock(ctx, e.Ref().String(), func(ctx context.Context) error {
		return m.store.Delete(ctx, e.Type, e.PK)
	})
	if err != nil {
		return err
	}

	m.fire(ctx, &domain.Event{Kind: domain.AfterDelete, Sender: e.Type, Instance: e})
	return nil
}

// Add links pks to the many-to-many attribute attr of e. Keys already
// linked are left out of the collection events; when none is new, no
// event fires.
func (m *Manager) Add(ctx context.Context, e *domain.Entity, attr string, pks ...domain.PK) error {
	return m.changeCollection(ctx, e, attr, domain.ActionAdd, pks)
}

// Remove unlinks pks from the many-to-many attribute attr of e.
func (m *Manager) Remove(ctx context.Context, e *domain.Entity, attr string, pks ...domain.PK) error {
	return m.changeCollection(ctx, e, attr, domain.ActionRemove, pks)
}

// Clear unlinks every member of the many-to-many attribute attr of e.
//
// before_collection_change carries the members being removed; the matching
// after_collection_change does not, so receivers that need them must capture
// them in the before hook.
func (m *Manager) Clear(ctx context.Context, e *domain.Entity, attr string) error {
	return m.changeCollection(ctx, e, attr, domain.ActionClear, nil)
}

func (m *Manager) changeCollection(ctx context.Context, e *domain.Entity, attr string, action domain.CollectionAction, pks []domain.PK) error {
	if !e.HasIdentity() {
		return domain.ErrIdentityRequired
	}
	rel, err := m.relations.Relation(e.Type, attr)
	if err != nil {
		return err
	}
	if rel.Kind != domain.ManyToMany {
		return fmt.Errorf("%s.%s is %s, not many_to_many", e.Type, attr, rel.Kind)
	}

	event := func(kind domain.HookKind, affected []domain.PK) *domain.Event {
		return &domain.Event{
			Kind:        kind,
			Sender:      rel.Through,
			Instance:    e,
			Action:      action,
			Through:     rel.Through,
			Side:        rel.Side,
			AffectedIDs: affected,
		}
	}

	err = m.WithLock(ctx, e.Ref().String()+"/"+rel.Through, func(ctx context.Context) error {
		switch action {
		case domain.ActionClear:
			current, err := m.store.Links(ctx, rel.Through, rel.Side, e.PK)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", rel.Through, err)
			}
			pks = current
		case domain.ActionAdd:
			current, err := m.store.Links(ctx, rel.Through, rel.Side, e.PK)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", rel.Through, err)
			}
			pks = missing(current, pks)
			if len(pks) == 0 {
				return errNothingToLink
			}
		}

		m.fire(ctx, event(domain.BeforeCollectionChange, pks))
		for _, other := range pks {
			src, dst := e.PK, other
			if rel.Side == domain.TargetSide {
				src, dst = other, e.PK
			}
			var err error
			if action == domain.ActionAdd {
				err = m.store.Link(ctx, rel.Through, src, dst)
			} else {
				err = m.store.Unlink(ctx, rel.Through, src, dst)
			}
			if err != nil {
				return fmt.Errorf("failed to %s %s: %w", action, rel.Through, err)
			}
		}
		return nil
	})
	if errors.Is(err, errNothingToLink) {
		return nil
	}
	if err != nil {
		return err
	}

	affected := pks
	if action == domain.ActionClear {
		affected = nil
	}
	m.fire(ctx, event(domain.AfterCollectionChange, affected))
	return nil
}

var errNothingToLink = errors.New("nothing to link")

// missing returns the distinct entries of requested absent from current,
// in request order.
func missing(current, requested []domain.PK) []domain.PK {
	seen := make(map[domain.PK]bool, len(current)+len(requested))
	for _, pk := range current {
		seen[pk] = true
	}
	var out []domain.PK
	for _, pk := range requested {
		if seen[pk] {
			continue
		}
		seen[pk] = true
		out = append(out, pk)
	}
	return out
}

// Load returns the persisted state of an entity.
func (m *Manager) Load(ctx context.Context, typeName string, pk domain.PK) (*domain.Entity, error) {
	rec, err := m.store.Get(ctx, typeName, pk)
	if err != nil {
		return nil, err
	}
	return &domain.Entity{Type: typeName, PK: pk, Fields: rec}, nil
}

// Filter scans every row of the type and keeps those matching every value.
func (m *Manager) Filter(ctx context.Context, typeName string, match domain.Record) ([]*domain.Entity, error) {
	pks, err := m.store.List(ctx, typeName)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", typeName, err)
	}

	var out []*domain.Entity
	for _, pk := range pks {
		e, err := m.Load(ctx, typeName, pk)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if matches(e, match) {
			out = append(out, e)
		}
	}
	return out, nil
}

func matches(e *domain.Entity, match domain.Record) bool {
	for k, v := range match {
		if !domain.Equal(e.Get(k), v) {
			return false
		}
	}
	return true
}

// Links returns the keys linked to pk through a join relation.
func (m *Manager) Links(ctx context.Context, through string, side domain.JoinSide, pk domain.PK) ([]domain.PK, error) {
	return m.store.Links(ctx, through, side, pk)
}

// Store returns the underlying store.
func (m *Manager) Store() ports.Store {
	return m.store
}
