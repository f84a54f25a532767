package script

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/observer/pkg/adapters/memory"
	"github.com/aretw0/observer/pkg/domain"
	"github.com/aretw0/observer/pkg/watchers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Blog(t *testing.T) {
	s, err := Load("testdata/blog.yaml")
	require.NoError(t, err)

	require.Len(t, s.Schemas, 2)
	article := s.Schemas[0].Schema()
	author, ok := article.Field("author")
	require.True(t, ok)
	assert.Equal(t, domain.ToOne, author.Kind)
	assert.True(t, author.Nullable)

	require.Len(t, s.Watches, 1)
	require.Len(t, s.Steps, 9)
	assert.Equal(t, "Hello again", s.Steps[4].Update.Fields["title"])
	assert.Equal(t, []string{"ana"}, s.Steps[6].Add.Refs)
	assert.Equal(t, "author", s.Steps[7].Unwatch)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "schemas: [",
		"unknown key":    "schemas: []\nsurprise: 1\n",
		"unknown kind":   "schemas:\n  - name: A\n    fields:\n      - {name: x, kind: sideways}\n",
		"empty step":     "steps:\n  - {}\n",
		"two actions":    "steps:\n  - {unwatch: a, delete: {ref: x}}\n",
		"instance watch": "watches:\n  - {name: w, type: A, ref: a, attr: x}\n",
		"missing attr":   "watches:\n  - {name: w, type: A}\n",
	}
	for name, data := range cases {
		_, err := Parse([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestRunner_Blog(t *testing.T) {
	s, err := Load("testdata/blog.yaml")
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := NewRunner(WithOutput(&out)).Run(context.Background(), s, memory.NewStore())
	require.NoError(t, err)

	want := []string{
		"titles Article#1 title",
		"author Article#1 author",
		"author Article#1 author",
		"team Article#1 collaborators",
		"team Article#1 collaborators",
	}
	assert.Equal(t, want, strings.Split(strings.TrimSpace(out.String()), "\n"))
	assert.Equal(t, int64(5), res.Callbacks)

	infos := res.Observer.Watchers()
	require.Len(t, infos, 2)
	assert.Equal(t, "Article", infos[0].Target)
	assert.Equal(t, watchers.Bound.String(), infos[0].State)
	assert.Equal(t, 2, res.Observer.UnwatchAll())
}

func TestRunner_StepErrors(t *testing.T) {
	cases := map[string]string{
		"unknown type":    "steps:\n  - create: {type: Ghost}\n",
		"unknown alias":   "steps:\n  - update: {ref: ghost, fields: {x: 1}}\n",
		"unknown watch":   "steps:\n  - unwatch: nope\n",
		"unknown watcher": "schemas:\n  - {name: A, fields: [{name: x}]}\nsteps:\n  - create: {type: A, as: a}\n  - watch: {name: w, type: A, ref: a, attr: x, watcher: psychic}\n",
		"unknown attr":    "schemas:\n  - {name: A, fields: [{name: x}]}\nsteps:\n  - watch: {name: w, type: A, attr: y}\n",
		"model on type":   "schemas:\n  - {name: A, fields: [{name: x}]}\nsteps:\n  - watch: {name: w, type: A, watcher: model}\n",
	}
	for name, data := range cases {
		s, err := Parse([]byte(data))
		require.NoError(t, err, name)
		_, err = NewRunner().Run(context.Background(), s, memory.NewStore())
		assert.Error(t, err, name)
	}
}

func TestRunner_DefaultWatcherAndModel(t *testing.T) {
	s, err := Parse([]byte(`
schemas:
  - name: Tag
    fields:
      - {name: label}
steps:
  - create: {type: Tag, as: go, fields: {label: go}}
  - watch: {name: any, type: Tag, ref: go, watcher: model}
  - watch: {name: label, type: Tag, attr: label}
  - update: {ref: go, fields: {label: golang}}
  - delete: {ref: go}
`))
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := NewRunner(WithOutput(&out), WithDefaultWatcher("auto")).Run(context.Background(), s, memory.NewStore())
	require.NoError(t, err)

	assert.Equal(t, "any Tag#1\nlabel Tag#1 label\nany Tag#1\n", out.String())
	kinds := []string{}
	for _, info := range res.Observer.Watchers() {
		kinds = append(kinds, info.Kind)
	}
	assert.Equal(t, []string{"model", "auto"}, kinds)
}
