package observer_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/observer"
	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/session"
	"github.com/aretw0/observer/pkg/watchers"
)

// ExampleObserver_WatchEntity watches a reference and the entity it points at.
func ExampleObserver_WatchEntity() {
	cat := catalog.New()
	for _, s := range []domain.Schema{
		{Name: "User", Fields: []domain.Field{{Name: "name"}}},
		{Name: "Article", Fields: []domain.Field{
			{Name: "title"},
			{Name: "author", Kind: domain.ToOne, Target: "User", RelatedName: "articles", Nullable: true},
		}},
	} {
		if err := cat.Register(s); err != nil {
			log.Fatal(err)
		}
	}

	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore(), cat)
	obs, err := observer.New(cat, mgr, mgr)
	if err != nil {
		log.Fatal(err)
	}

	article := domain.NewEntity("Article", domain.Record{"title": "foo"})
	if err := mgr.Save(ctx, article); err != nil {
		log.Fatal(err)
	}

	_, err = obs.WatchEntity(ctx, article, "author", func(ctx context.Context, w watchers.Watcher, obj *domain.Entity, attr string) {
		fmt.Printf("%s.%s changed\n", obj.Ref(), attr)
	})
	if err != nil {
		log.Fatal(err)
	}

	user := domain.NewEntity("User", domain.Record{"name": "x"})
	_ = mgr.Save(ctx, user)

	article.SetRef("author", user)
	_ = mgr.Save(ctx, article)

	user.Set("name", "y")
	_ = mgr.Save(ctx, user)

	fmt.Println("watchers:", len(obs.Watchers()))
	fmt.Println("released:", obs.UnwatchAll())
	// Output:
	// Article#1.author changed
	// Article#1.author changed
	// watchers: 1
	// released: 1
}
