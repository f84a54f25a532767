package lazy_test

import (
	"testing"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/lazy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_ReadyTypeRunsNow(t *testing.T) {
	cat := catalog.New()
	require.NoError(t, cat.Register(domain.Schema{Name: "Article"}))
	r := lazy.New(cat)

	var got string
	ran := r.Resolve("article", func(s *domain.Schema) { got = s.Name })

	assert.True(t, ran)
	assert.Equal(t, "Article", got)
	assert.Equal(t, 0, r.Len())
}

func TestResolver_DefersAndDrainsInOrder(t *testing.T) {
	cat := catalog.New()
	r := lazy.New(cat)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		ran := r.Resolve("Article", func(s *domain.Schema) {
			order = append(order, name+":"+s.Name)
		})
		assert.False(t, ran)
	}
	assert.Equal(t, 3, r.Pending("article"))

	require.NoError(t, cat.Register(domain.Schema{Name: "User"}))
	assert.Empty(t, order, "unrelated types do not drain")

	require.NoError(t, cat.Register(domain.Schema{Name: "Article"}))
	assert.Equal(t, []string{"first:Article", "second:Article", "third:Article"}, order)
	assert.Equal(t, 0, r.Pending("Article"))
}

func TestResolver_OperationsQueuedDuringDrainAreNotReplayed(t *testing.T) {
	cat := catalog.New()
	r := lazy.New(cat)

	runs := 0
	r.Resolve("Article", func(s *domain.Schema) {
		runs++
		// Re-enqueue for a type that is still pending.
		r.Resolve("Tag", func(*domain.Schema) { runs += 10 })
	})

	require.NoError(t, cat.Register(domain.Schema{Name: "Article"}))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, r.Pending("Tag"))

	require.NoError(t, cat.Register(domain.Schema{Name: "Tag"}))
	assert.Equal(t, 11, runs)
	assert.Equal(t, 0, r.Len())
}

func TestResolver_EachOperationRunsOnce(t *testing.T) {
	cat := catalog.New()
	r := lazy.New(cat)

	runs := 0
	r.Resolve("Article", func(*domain.Schema) { runs++ })
	require.NoError(t, cat.Register(domain.Schema{Name: "Article"}))
	r.TypeReady(&domain.Schema{Name: "Article"})

	assert.Equal(t, 1, runs)
}

func TestResolver_AnyTypeDrainsOnNextRegistration(t *testing.T) {
	cat := catalog.New()
	r := lazy.New(cat)

	var seen []string
	r.Resolve("Article", func(s *domain.Schema) { seen = append(seen, "article:"+s.Name) })
	assert.False(t, r.Resolve(lazy.AnyType, func(s *domain.Schema) { seen = append(seen, "any:"+s.Name) }))
	assert.Equal(t, 1, r.Pending(lazy.AnyType))

	require.NoError(t, cat.Register(domain.Schema{Name: "User"}))
	assert.Equal(t, []string{"any:User"}, seen)
	assert.Equal(t, 1, r.Len())

	r.Resolve(lazy.AnyType, func(s *domain.Schema) { seen = append(seen, "any:"+s.Name) })
	require.NoError(t, cat.Register(domain.Schema{Name: "Article"}))
	assert.Equal(t, []string{"any:User", "article:Article", "any:Article"}, seen)
	assert.Zero(t, r.Len())
}
