package watchers_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/observer/internal/testutils"
	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/session"
	"github.com/aretw0/observer/pkg/watchers"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t   *testing.T
	ctx context.Context
	cat *catalog.Catalog
	mgr *session.Manager
	env *watchers.Env
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testutils.NewBlogCatalog(t))
}

func newHarnessWith(t *testing.T, cat *catalog.Catalog) *harness {
	t.Helper()
	mgr := session.NewManager(memory.NewStore(), cat)
	return &harness{
		t:   t,
		ctx: context.Background(),
		cat: cat,
		mgr: mgr,
		env: watchers.NewEnv(cat, mgr, mgr),
	}
}

func (h *harness) create(typeName string, fields domain.Record) *domain.Entity {
	h.t.Helper()
	e := domain.NewEntity(typeName, fields)
	require.NoError(h.t, h.mgr.Save(h.ctx, e))
	return e
}

func (h *harness) save(e *domain.Entity) {
	h.t.Helper()
	require.NoError(h.t, h.mgr.Save(h.ctx, e))
}

func (h *harness) target(e *domain.Entity) watchers.Target {
	h.t.Helper()
	target, err := watchers.ForEntity(e)
	require.NoError(h.t, err)
	return target
}

type call struct {
	sender watchers.Watcher
	obj    *domain.Entity
	attr   string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) callback(ctx context.Context, sender watchers.Watcher, obj *domain.Entity, attr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{sender: sender, obj: obj, attr: attr})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// refs returns the references of the reported objects, in call order.
func (r *recorder) refs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.obj.Ref().String())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
