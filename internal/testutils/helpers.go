// Package testutils provides shared fixtures for the observer test suites.
package testutils

import (
	"testing"

	"github.com/aretw0/observer/pkg/catalog"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/dsl"
	"github.com/stretchr/testify/require"
)

// BlogSchemas returns a small blog model covering every relationship kind.
//
//	Article.title, Article.content        scalar
//	Article.supplement -> Supplement      unique to_one   (Supplement.article is reverse_to_one)
//	Article.author -> User                to_one          (User.authored is to_many)
//	Article.collaborators <-> User        many_to_many    (User.articles)
//	Revision.article -> Article           unique to_one   (Article.revision)
//	Project.article -> Article            to_one          (Article.projects)
//	Hyperlink.articles <-> Article        many_to_many    (Article.hyperlinks)
//	Tag.content_object                    generic_to_one  (Article.tags is generic_to_many)
func BlogSchemas() []domain.Schema {
	b := dsl.New()
	b.Type("User").Field("label")
	b.Type("Supplement").Field("label")
	b.Type("Article").
		Field("title", "content").
		ToOne("supplement", "Supplement").RelatedName("article").Unique().Nullable().
		ToOne("author", "User").RelatedName("authored").Nullable().
		ManyToMany("collaborators", "User", "article_collaborators").RelatedName("articles").
		GenericToMany("tags", "Tag")
	b.Type("Revision").
		Field("label").
		ToOne("article", "Article").RelatedName("revision").Unique().Nullable()
	b.Type("Project").
		Field("label").
		ToOne("article", "Article").RelatedName("projects").Nullable()
	b.Type("Hyperlink").
		Field("label").
		ManyToMany("articles", "Article", "hyperlink_articles").RelatedName("hyperlinks")
	b.Type("Tag").
		Field("label", "content_type", "object_id").
		GenericToOne("content_object", "content_type", "object_id")
	return b.Build()
}

// NewBlogCatalog registers BlogSchemas in a fresh catalog.
// It fails the test immediately on error.
func NewBlogCatalog(t *testing.T, opts ...catalog.Option) *catalog.Catalog {
	t.Helper()

	cat := catalog.New(opts...)
	for _, s := range BlogSchemas() {
		require.NoError(t, cat.Register(s), "Failed to register %s", s.Name)
	}
	return cat
}
