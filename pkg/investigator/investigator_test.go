package investigator_test

import (
	"context"
	"slices"
	"testing"

	"github.com/aretw0/observer/internal/testutils"
	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/investigator"
	"github.com/aretw0/observer/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*session.Manager, *domain.Schema) {
	t.Helper()
	cat := testutils.NewBlogCatalog(t)
	schema, ok := cat.Lookup("Article")
	require.True(t, ok)
	return session.NewManager(memory.NewStore(), cat), schema
}

func TestInvestigator_Changes(t *testing.T) {
	ctx := context.Background()
	mgr, schema := setup(t)

	tests := []struct {
		name   string
		opts   []investigator.Option
		mutate func(e *domain.Entity)
		want   []string
	}{
		{
			name:   "no change",
			mutate: func(e *domain.Entity) {},
			want:   nil,
		},
		{
			name:   "single field",
			mutate: func(e *domain.Entity) { e.Set("title", "bar") },
			want:   []string{"title"},
		},
		{
			name: "declaration order",
			mutate: func(e *domain.Entity) {
				e.Set("author", 7)
				e.Set("title", "bar")
			},
			want: []string{"title", "author"},
		},
		{
			name:   "include",
			opts:   []investigator.Option{investigator.WithInclude("title")},
			mutate: func(e *domain.Entity) { e.Set("content", "changed") },
			want:   nil,
		},
		{
			name: "exclude",
			opts: []investigator.Option{investigator.WithExclude("title")},
			mutate: func(e *domain.Entity) {
				e.Set("title", "bar")
				e.Set("content", "changed")
			},
			want: []string{"content"},
		},
		{
			name:   "numeric normalization",
			mutate: func(e *domain.Entity) { e.Set("content", 1.0) },
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := domain.NewEntity("Article", domain.Record{"title": "foo", "content": 1})
			require.NoError(t, mgr.Save(ctx, e))

			inv := investigator.New(mgr, schema, tt.opts...)
			require.NoError(t, inv.Prepare(ctx, e))
			tt.mutate(e)

			got := slices.Collect(inv.Investigate(e))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 0, inv.Pending(), "investigate consumes the snapshot")
		})
	}
}

func TestInvestigator_NoSnapshot(t *testing.T) {
	ctx := context.Background()
	mgr, schema := setup(t)
	inv := investigator.New(mgr, schema)

	// Unsaved entities are ignored.
	fresh := domain.NewEntity("Article", domain.Record{"title": "foo"})
	require.NoError(t, inv.Prepare(ctx, fresh))
	assert.Equal(t, 0, inv.Pending())

	// An identity with no persisted row is a creation.
	fresh.PK = 42
	require.NoError(t, inv.Prepare(ctx, fresh))
	assert.Empty(t, slices.Collect(inv.Investigate(fresh)))
}

func TestInvestigator_SingleUse(t *testing.T) {
	ctx := context.Background()
	mgr, schema := setup(t)
	inv := investigator.New(mgr, schema)

	e := domain.NewEntity("Article", domain.Record{"title": "foo"})
	require.NoError(t, mgr.Save(ctx, e))
	require.NoError(t, inv.Prepare(ctx, e))
	e.Set("title", "bar")

	seq := inv.Investigate(e)
	assert.Equal(t, []string{"title"}, slices.Collect(seq))
	assert.Empty(t, slices.Collect(seq), "sequence is not restartable")
	assert.Empty(t, slices.Collect(inv.Investigate(e)), "snapshot was consumed")
}

func TestInvestigator_PrepareOverwrites(t *testing.T) {
	ctx := context.Background()
	mgr, schema := setup(t)
	inv := investigator.New(mgr, schema)

	e := domain.NewEntity("Article", domain.Record{"title": "foo"})
	require.NoError(t, mgr.Save(ctx, e))
	require.NoError(t, inv.Prepare(ctx, e))

	e.Set("title", "bar")
	require.NoError(t, mgr.Save(ctx, e))
	require.NoError(t, inv.Prepare(ctx, e))

	assert.Empty(t, slices.Collect(inv.Investigate(e)))
}

func TestInvestigator_Accessors(t *testing.T) {
	ctx := context.Background()
	mgr, schema := setup(t)
	inv := investigator.New(mgr, schema)

	e := domain.NewEntity("Article", domain.Record{"title": "foo"})
	require.NoError(t, mgr.Save(ctx, e))

	cached, err := inv.GetCached(e.PK, true)
	require.NoError(t, err)
	assert.Nil(t, cached)
	_, err = inv.GetCached(e.PK, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, inv.Prepare(ctx, e))
	cached, err = inv.GetCached(e.PK, false)
	require.NoError(t, err)
	assert.Equal(t, "foo", cached.Get("title"))
	assert.Equal(t, 1, inv.Pending(), "GetCached does not consume")

	obj, err := inv.GetObject(ctx, e.PK, false)
	require.NoError(t, err)
	assert.Equal(t, e.Ref(), obj.Ref())

	obj, err = inv.GetObject(ctx, 999, true)
	require.NoError(t, err)
	assert.Nil(t, obj)
	_, err = inv.GetObject(ctx, 999, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
