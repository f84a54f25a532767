/*
Package observer reports changes of entity attributes, including changes that
happen indirectly through related entities.

A caller registers interest in a named attribute of a persisted entity (or of
every entity of a type) and receives a callback whenever its effective value
changes. Relationships are followed: watching Article.author also reports
modifications of the referenced User, and watching a many-to-many collection
reports additions, removals, clears and modifications of current members.

# Concept

The library sits on top of a persistence substrate that fires commit hooks
(before_commit, after_commit, after_delete and collection changes). Watchers
snapshot the persisted pre-image before a commit and diff it afterwards, so a
callback fires only when something actually changed. The substrate is
abstracted by the ports package; pkg/session provides a ready-made one over
the memory, redis and sqlite stores.

# Key Features

  - Snapshot/diff change detection with include and exclude field filters.
  - One watcher kind per relationship kind, chosen automatically.
  - Cascaded member watchers rebuilt whenever an association changes.
  - Watches may be declared before their types are registered.
  - An owned registry for bulk teardown, and Prometheus metrics.

# Usage

	cat := catalog.New()
	_ = cat.Register(domain.Schema{Name: "Article", Fields: []domain.Field{{Name: "title"}}})

	mgr := session.NewManager(memory.NewStore(), cat)
	obs, err := observer.New(cat, mgr, mgr)
	if err != nil {
		log.Fatal(err)
	}

	article := domain.NewEntity("Article", domain.Record{"title": "foo"})
	_ = mgr.Save(ctx, article)

	_, err = obs.WatchEntity(ctx, article, "title",
		func(ctx context.Context, w watchers.Watcher, obj *domain.Entity, attr string) {
			fmt.Println(attr, "is now", obj.Get(attr))
		})

	article.Set("title", "bar")
	_ = mgr.Save(ctx, article) // prints: title is now bar
*/
package observer
