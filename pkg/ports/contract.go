package ports

import (
	"context"
	"testing"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract. The store must be empty.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("NextID is unique per type", func(t *testing.T) {
		a, err := store.NextID(ctx, "Contract")
		require.NoError(t, err)
		b, err := store.NextID(ctx, "Contract")
		require.NoError(t, err)
		assert.NotZero(t, a)
		assert.NotEqual(t, a, b)
	})

	t.Run("Put and Get", func(t *testing.T) {
		pk, err := store.NextID(ctx, "Contract")
		require.NoError(t, err)

		err = store.Put(ctx, "Contract", pk, domain.Record{"title": "foo", "count": 42, "ref": nil})
		require.NoError(t, err, "Put should not return error")

		rec, err := store.Get(ctx, "Contract", pk)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, "foo", rec["title"])
		// JSON backends decode numbers as float64; normalization must fold them back.
		assert.Equal(t, int64(42), domain.Normalize(rec["count"]))
		assert.Nil(t, rec["ref"])

		err = store.Put(ctx, "Contract", pk, domain.Record{"title": "bar"})
		require.NoError(t, err)
		rec, err = store.Get(ctx, "Contract", pk)
		require.NoError(t, err)
		assert.Equal(t, "bar", rec["title"])
	})

	t.Run("Nested values round trip", func(t *testing.T) {
		pk, err := store.NextID(ctx, "Contract")
		require.NoError(t, err)

		put := domain.Record{
			"ids":  []int{1, 2},
			"tags": []string{"go", "db"},
			"meta": map[string]any{"rank": 4, "ratio": 0.5, "path": []any{1, "x"}},
		}
		require.NoError(t, store.Put(ctx, "Contract", pk, put))

		got, err := store.Get(ctx, "Contract", pk)
		require.NoError(t, err)
		for name, want := range put {
			assert.True(t, domain.Equal(want, got[name]), "%s: put %#v, got %#v", name, want, got[name])
		}
	})

	t.Run("Get returns a copy", func(t *testing.T) {
		pk, err := store.NextID(ctx, "Contract")
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "Contract", pk, domain.Record{"title": "foo"}))

		rec, err := store.Get(ctx, "Contract", pk)
		require.NoError(t, err)
		rec["title"] = "mutated"

		rec, err = store.Get(ctx, "Contract", pk)
		require.NoError(t, err)
		assert.Equal(t, "foo", rec["title"])
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "Contract", 999999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		pk, err := store.NextID(ctx, "Disposable")
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, "Disposable", pk, domain.Record{"x": 1}))

		require.NoError(t, store.Delete(ctx, "Disposable", pk), "Delete should not return error")

		_, err = store.Get(ctx, "Disposable", pk)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Delete should return ErrNotFound")
		assert.ErrorIs(t, store.Delete(ctx, "Disposable", pk), domain.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		var want []domain.PK
		for i := 0; i < 3; i++ {
			pk, err := store.NextID(ctx, "Listed")
			require.NoError(t, err)
			require.NoError(t, store.Put(ctx, "Listed", pk, domain.Record{"i": i}))
			want = append(want, pk)
		}

		pks, err := store.List(ctx, "Listed")
		require.NoError(t, err)
		assert.Equal(t, want, pks)

		pks, err = store.List(ctx, "Empty")
		require.NoError(t, err)
		assert.Empty(t, pks)
	})

	t.Run("Links", func(t *testing.T) {
		require.NoError(t, store.Link(ctx, "a_b", 1, 10))
		require.NoError(t, store.Link(ctx, "a_b", 1, 11))
		require.NoError(t, store.Link(ctx, "a_b", 1, 11))
		require.NoError(t, store.Link(ctx, "a_b", 2, 10))

		dst, err := store.Links(ctx, "a_b", domain.SourceSide, 1)
		require.NoError(t, err)
		assert.Equal(t, []domain.PK{10, 11}, dst)

		src, err := store.Links(ctx, "a_b", domain.TargetSide, 10)
		require.NoError(t, err)
		assert.Equal(t, []domain.PK{1, 2}, src)

		require.NoError(t, store.Unlink(ctx, "a_b", 1, 10))
		require.NoError(t, store.Unlink(ctx, "a_b", 1, 10))

		dst, err = store.Links(ctx, "a_b", domain.SourceSide, 1)
		require.NoError(t, err)
		assert.Equal(t, []domain.PK{11}, dst)

		src, err = store.Links(ctx, "a_b", domain.TargetSide, 10)
		require.NoError(t, err)
		assert.Equal(t, []domain.PK{2}, src)

		none, err := store.Links(ctx, "a_b", domain.SourceSide, 3)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
