package session

import (
	"context"
	"testing"

	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/domain"
)

type noRelations struct{}

func (noRelations) Relation(owner, attr string) (domain.Relation, error) {
	return domain.Relation{}, domain.ErrUnknownAttribute
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore(), noRelations{})
	ctx := context.Background()
	count := 1000

	for i := 0; i < count; i++ {
		e := domain.NewEntity("User", domain.Record{"n": i})
		if err := mgr.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
		if err := mgr.Delete(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	lockCount := len(mgr.locks)
	t.Logf("Entities Created: %d, Locks Leaked: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
