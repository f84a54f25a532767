package memory_test

import (
	"testing"

	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStoreContract(t, store)
}
