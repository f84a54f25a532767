package broker_test

import (
	"context"
	"testing"

	"github.com/aretw0/observer/pkg/broker"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	connects    int
	disconnects int
}

func (f *fakeSource) Connect(kind domain.HookKind, sender, receiverID string, fn domain.Receiver) {
	f.connects++
}

func (f *fakeSource) Disconnect(kind domain.HookKind, sender, receiverID string) bool {
	f.disconnects++
	return true
}

func noop(context.Context, *domain.Event) {}

func TestBroker_Dedup(t *testing.T) {
	src := &fakeSource{}
	b := broker.New(src)

	assert.True(t, b.Register(domain.AfterCommit, "Article", "w1/post", noop))
	assert.False(t, b.Register(domain.AfterCommit, "Article", "w1/post", noop))
	assert.Equal(t, 1, src.connects)

	// Same receiver on a different hook or sender is a distinct binding.
	assert.True(t, b.Register(domain.BeforeCommit, "Article", "w1/post", noop))
	assert.True(t, b.Register(domain.AfterCommit, "User", "w1/post", noop))
	assert.Equal(t, 3, b.Len())

	assert.True(t, b.IsRegistered(domain.AfterCommit, "Article", "w1/post"))
	assert.False(t, b.IsRegistered(domain.AfterDelete, "Article", "w1/post"))
}

func TestBroker_Unregister(t *testing.T) {
	src := &fakeSource{}
	b := broker.New(src)

	assert.False(t, b.Unregister(domain.AfterCommit, "Article", "w1"))
	assert.Equal(t, 0, src.disconnects)

	b.Register(domain.AfterCommit, "Article", "w1", noop)
	assert.True(t, b.Unregister(domain.AfterCommit, "Article", "w1"))
	assert.False(t, b.Unregister(domain.AfterCommit, "Article", "w1"))
	assert.Equal(t, 1, src.disconnects)

	assert.True(t, b.Register(domain.AfterCommit, "Article", "w1", noop), "rebinding after unregister")
}
