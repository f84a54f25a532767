package watchers_test

import (
	"testing"

	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/watchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManyRelatedWatcher_AddRemoveClear(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})
	u1 := h.create("User", domain.Record{"label": "u1"})
	u2 := h.create("User", domain.Record{"label": "u2"})

	w, err := watchers.NewManyRelatedWatcher(h.env, h.target(article), "collaborators", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))

	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", u1.PK, u2.PK))
	require.Equal(t, 1, rec.count())
	assert.Equal(t, article.Ref(), rec.last().obj.Ref())

	values, err := w.GetValues(h.ctx, article)
	require.NoError(t, err)
	assert.Len(t, values, 2)

	require.NoError(t, h.mgr.Remove(h.ctx, article, "collaborators", u1.PK))
	assert.Equal(t, 2, rec.count())

	require.NoError(t, h.mgr.Clear(h.ctx, article, "collaborators"))
	assert.Equal(t, 3, rec.count())

	values, err = w.GetValues(h.ctx, article)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestManyRelatedWatcher_ReAddIsNotAChange(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})
	user := h.create("User", domain.Record{"label": "u"})
	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", user.PK))

	w, err := watchers.NewManyRelatedWatcher(h.env, watchers.ForType("User"), "articles", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))

	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", user.PK))
	assert.Zero(t, rec.count())

	other := h.create("User", domain.Record{"label": "o"})
	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", user.PK, other.PK))
	assert.Equal(t, []string{other.Ref().String()}, rec.refs())
}

func TestManyRelatedWatcher_MemberModified(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})
	user := h.create("User", domain.Record{"label": "u"})
	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", user.PK))

	w, err := watchers.NewManyRelatedWatcher(h.env, h.target(article), "collaborators", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))

	user.Set("label", "u2")
	h.save(user)
	assert.Equal(t, []string{article.Ref().String()}, rec.refs())

	// Users outside the association are ignored.
	h.create("User", domain.Record{"label": "x"})
	assert.Equal(t, 1, rec.count())
}

func TestManyRelatedWatcher_ReverseSide(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	a1 := h.create("Article", domain.Record{"title": "a1"})
	a2 := h.create("Article", domain.Record{"title": "a2"})
	user := h.create("User", domain.Record{"label": "u"})

	w, err := watchers.NewManyRelatedWatcher(h.env, watchers.ForType("Article"), "collaborators", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))

	require.NoError(t, h.mgr.Add(h.ctx, user, "articles", a1.PK, a2.PK))
	assert.Equal(t, []string{a1.Ref().String(), a2.Ref().String()}, rec.refs())

	// Clearing from the user side reports the articles that were linked
	// right before the clear.
	rec.reset()
	require.NoError(t, h.mgr.Clear(h.ctx, user, "articles"))
	assert.Equal(t, []string{a1.Ref().String(), a2.Ref().String()}, rec.refs())
}

func TestManyRelatedWatcher_WatchedFromReverseAccessor(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	article := h.create("Article", domain.Record{"title": "t"})
	user := h.create("User", domain.Record{"label": "u"})

	w, err := watchers.NewManyRelatedWatcher(h.env, h.target(user), "articles", rec.callback)
	require.NoError(t, err)
	require.NoError(t, w.Watch(h.ctx))
	assert.True(t, w.IsReversed())

	require.NoError(t, h.mgr.Add(h.ctx, article, "collaborators", user.PK))
	assert.Equal(t, []string{user.Ref().String()}, rec.refs())

	article.Set("title", "t2")
	h.save(article)
	assert.Equal(t, 2, rec.count())
}
