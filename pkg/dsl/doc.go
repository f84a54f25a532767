/*
Package dsl provides a fluent builder for declaring entity schemas in Go.

It is an alternative to composing domain.Schema literals by hand, and is
particularly useful in tests and when schemas are generated dynamically.

Example usage:

	b := dsl.New()

	b.Type("User").
		Field("name")

	b.Type("Article").
		Field("title", "content").
		ToOne("author", "User").RelatedName("articles").Nullable().
		ManyToMany("collaborators", "User", "article_collaborators").RelatedName("shared")

	cat := catalog.New()
	if err := b.Register(cat); err != nil {
		log.Fatal(err)
	}
*/
package dsl
