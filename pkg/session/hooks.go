package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aretw0/observer/pkg/domain"
)

type connection struct {
	sender  string
	id      string
	fn      domain.Receiver
	removed atomic.Bool
}

// hookTable keeps the receivers of every hook kind in connection order.
type hookTable struct {
	mu    sync.Mutex
	conns map[domain.HookKind][]*connection
}

func newHookTable() *hookTable {
	return &hookTable{conns: make(map[domain.HookKind][]*connection)}
}

// Connect binds fn to hooks of the given kind fired by sender ("" for any
// sender). Connecting an existing receiver ID replaces its handler.
func (m *Manager) Connect(kind domain.HookKind, sender string, receiverID string, fn domain.Receiver) {
	t := m.hooks
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.without(kind, func(c *connection) bool { return c.id == receiverID })
	t.conns[kind] = append(list, &connection{sender: sender, id: receiverID, fn: fn})
}

// Disconnect removes a binding. It returns false if nothing was bound.
func (m *Manager) Disconnect(kind domain.HookKind, sender string, receiverID string) bool {
	t := m.hooks
	t.mu.Lock()
	defer t.mu.Unlock()

	before := len(t.conns[kind])
	t.conns[kind] = t.without(kind, func(c *connection) bool {
		return c.id == receiverID && c.sender == sender
	})
	return len(t.conns[kind]) != before
}

// Receivers reports how many receivers are connected to kind.
func (m *Manager) Receivers(kind domain.HookKind) int {
	m.hooks.mu.Lock()
	defer m.hooks.mu.Unlock()
	return len(m.hooks.conns[kind])
}

// without returns a new slice without the matching connections, marking
// them removed so in-flight dispatches skip them.
func (t *hookTable) without(kind domain.HookKind, match func(*connection) bool) []*connection {
	list := t.conns[kind]
	out := make([]*connection, 0, len(list)+1)
	for _, c := range list {
		if match(c) {
			c.removed.Store(true)
			continue
		}
		out = append(out, c)
	}
	return out
}

// fire invokes the receivers connected at the time of the call.
func (m *Manager) fire(ctx context.Context, ev *domain.Event) {
	m.hooks.mu.Lock()
	snapshot := m.hooks.conns[ev.Kind]
	m.hooks.mu.Unlock()

	for _, c := range snapshot {
		if c.removed.Load() {
			continue
		}
		if c.sender != "" && c.sender != ev.Sender {
			continue
		}
		c.fn(ctx, ev)
	}
}
