package watchers_test

import (
	"testing"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/watchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoWatcher_SelectsByKind(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})
	user := h.create("User", domain.Record{"label": "u"})

	title, err := watchers.NewAutoWatcher(h.env, h.target(article), "title", rec.callback)
	require.NoError(t, err)
	require.NoError(t, title.Watch(h.ctx))

	collaborators, err := watchers.NewAutoWatcher(h.env, h.target(article), "collaborators", rec.callback)
	require.NoError(t, err)
	require.NoError(t, collaborators.Watch(h.ctx))

	article.Set("title", "t2")
	h.save(article)
	require.Equal(t, 1, rec.count())
	assert.Same(t, title, rec.last().sender)
	assert.Equal(t, "title", rec.last().attr)

	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", user.PK))
	require.Equal(t, 2, rec.count())
	assert.Same(t, collaborators, rec.last().sender)

	// Inner watchers are not listed in the registry.
	assert.Equal(t, 2, h.env.Registry.Len())
}

func TestComplexWatcher_ForwardReference(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	a := h.create("User", domain.Record{"label": "a"})
	b := h.create("User", domain.Record{"label": "b"})
	article := h.create("Article", domain.Record{"title": "t", "author": a.PK})

	w, err := watchers.NewComplexWatcher(h.env, h.target(article), "author", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))
	require.Len(t, w.Members(), 1)

	a.Set("label", "a2")
	h.save(a)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, article.Ref(), rec.last().obj.Ref())
	assert.Equal(t, "author", rec.last().attr)

	article.SetRef("author", b)
	h.save(article)
	assert.Equal(t, 2, rec.count())

	a.Set("label", "a3")
	h.save(a)
	assert.Equal(t, 2, rec.count(), "previous author is no longer watched")

	b.Set("label", "b2")
	h.save(b)
	assert.Equal(t, 3, rec.count())

	// Fields outside the association do not count.
	article.Set("title", "t2")
	h.save(article)
	assert.Equal(t, 3, rec.count())

	article.SetRef("author", nil)
	h.save(article)
	assert.Equal(t, 4, rec.count())
	members := w.Members()
	require.Len(t, members, 1)
	assert.Equal(t, "dummy", members[0].Kind())
	assert.Equal(t, watchers.Bound, members[0].State())
}

func TestComplexWatcher_ReverseCollection(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	a := h.create("User", domain.Record{"label": "a"})
	b := h.create("User", domain.Record{"label": "b"})
	first := h.create("Article", domain.Record{"title": "1", "author": a.PK})
	h.create("Article", domain.Record{"title": "2", "author": a.PK})

	w, err := watchers.NewComplexWatcher(h.env, h.target(a), "authored", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))
	require.Len(t, w.Members(), 2)

	first.Set("title", "1b")
	h.save(first)
	assert.Equal(t, 1, rec.count())

	// Moving an article away is reported once, not once per watcher.
	first.SetRef("author", b)
	h.save(first)
	assert.Equal(t, 2, rec.count())
	assert.Len(t, w.Members(), 1)

	first.Set("title", "1c")
	h.save(first)
	assert.Equal(t, 2, rec.count())

	h.create("Article", domain.Record{"title": "3", "author": a.PK})
	assert.Equal(t, 3, rec.count())
	assert.Len(t, w.Members(), 2)
	for _, c := range rec.calls {
		assert.Equal(t, a.Ref(), c.obj.Ref())
	}
}

func TestComplexWatcher_ManyToManyCascade(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})
	user := h.create("User", domain.Record{"label": "u"})

	w, err := watchers.NewComplexWatcher(h.env, h.target(article), "collaborators", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))
	assert.Empty(t, w.Members())

	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", user.PK))
	assert.Equal(t, 1, rec.count())
	require.Len(t, w.Members(), 1)

	user.Set("label", "u2")
	h.save(user)
	assert.Equal(t, 2, rec.count())

	require.NoError(t, h.mgr.Remove(h.ctx, article, "collaborators", user.PK))
	assert.Equal(t, 3, rec.count())
	assert.Empty(t, w.Members())

	user.Set("label", "u3")
	h.save(user)
	assert.Equal(t, 3, rec.count())
}

func TestComplexWatcher_TypeTargetBehavesLikeAuto(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}

	w, err := watchers.NewComplexWatcher(h.env, watchers.ForType("Article"), "title", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))
	assert.Empty(t, w.Members())

	article := h.create("Article", domain.Record{"title": "t"})
	article.Set("title", "t2")
	h.save(article)
	require.Equal(t, 1, rec.count())
	assert.Same(t, w, rec.last().sender)
}

func TestComplexWatcher_UnwatchReleasesEverything(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})
	u1 := h.create("User", domain.Record{"label": "u1"})
	u2 := h.create("User", domain.Record{"label": "u2"})
	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", u1.PK, u2.PK))

	w, err := watchers.NewComplexWatcher(h.env, h.target(article), "collaborators", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))
	require.Len(t, w.Members(), 2)
	assert.NotZero(t, h.env.Broker.Len())

	w.Unwatch()
	assert.Equal(t, watchers.Unbound, w.State())
	assert.Empty(t, w.Members())
	assert.Zero(t, h.env.Broker.Len())
	assert.Zero(t, h.env.Registry.Len())

	u1.Set("label", "x")
	h.save(u1)
	require.NoError(t, h.mgr.Clear(h.ctx, article, "collaborators"))
	assert.Zero(t, rec.count())
}

func TestComplexWatcher_NullableReferenceAssigned(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})

	w, err := watchers.NewComplexWatcher(h.env, h.target(article), "author", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))
	require.Len(t, w.Members(), 1)
	assert.Equal(t, "dummy", w.Members()[0].Kind())

	user := h.create("User", domain.Record{"label": "x"})
	assert.Zero(t, rec.count())

	article.SetRef("author", user)
	h.save(article)
	assert.Equal(t, 1, rec.count())

	user.Set("label", "y")
	h.save(user)
	assert.Equal(t, 2, rec.count())

	unrelated := h.create("User", domain.Record{"label": "z"})
	unrelated.Set("label", "z2")
	h.save(unrelated)
	assert.Equal(t, 2, rec.count())
}
