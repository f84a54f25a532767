// Package broker guards the hook substrate against duplicate bindings.
package broker

import (
	"log/slog"
	"sync"

	"github.com/aretw0/observer/internal/logging"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/ports"
)

type binding struct {
	kind     domain.HookKind
	sender   string
	receiver string
}

// Broker tracks which (hook, receiver) pairs are bound for every sender
// type. At most one binding exists per pair.
type Broker struct {
	source ports.HookSource
	logger *slog.Logger

	mu    sync.Mutex
	bound map[binding]struct{}
}

// Option configures the Broker.
type Option func(*Broker)

// WithLogger configures a logger for the Broker.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// New creates a Broker over source.
func New(source ports.HookSource, opts ...Option) *Broker {
	b := &Broker{
		source: source,
		logger: logging.NewNop(),
		bound:  make(map[binding]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register binds fn and reports true, or reports false if the pair is
// already bound for sender.
func (b *Broker) Register(kind domain.HookKind, sender, receiverID string, fn domain.Receiver) bool {
	key := binding{kind, sender, receiverID}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.bound[key]; ok {
		b.logger.Debug("Binding already registered", "hook", kind, "sender", sender, "receiver", receiverID)
		return false
	}
	b.source.Connect(kind, sender, receiverID, fn)
	b.bound[key] = struct{}{}
	return true
}

// Unregister removes the binding. It reports false if it was not bound.
func (b *Broker) Unregister(kind domain.HookKind, sender, receiverID string) bool {
	key := binding{kind, sender, receiverID}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.bound[key]; !ok {
		return false
	}
	b.source.Disconnect(kind, sender, receiverID)
	delete(b.bound, key)
	return true
}

// IsRegistered reports whether the pair is bound for sender.
func (b *Broker) IsRegistered(kind domain.HookKind, sender, receiverID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bound[binding{kind, sender, receiverID}]
	return ok
}

// Len returns the number of live bindings.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bound)
}
