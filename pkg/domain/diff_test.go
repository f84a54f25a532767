package domain

import (
	"slices"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		old  *Entity
		new  *Entity
		want []FieldDiff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  NewEntity("Article", Record{"title": "foo", "author": nil}),
			want: []FieldDiff{{Name: "title", Old: nil, New: "foo"}},
		},
		{
			name: "No Changes",
			old:  NewEntity("Article", Record{"title": "foo", "views": 1}),
			new:  NewEntity("Article", Record{"title": "foo", "views": int64(1)}),
			want: nil,
		},
		{
			name: "Modified",
			old:  NewEntity("Article", Record{"title": "foo"}),
			new:  NewEntity("Article", Record{"title": "bar"}),
			want: []FieldDiff{{Name: "title", Old: "foo", New: "bar"}},
		},
		{
			name: "Removed",
			old:  NewEntity("Article", Record{"title": "foo", "content": "x"}),
			new:  NewEntity("Article", Record{"title": "foo"}),
			want: []FieldDiff{{Name: "content", Old: "x", New: nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			sort.Slice(got, func(i, j int) bool { return got[i].Name < got[j].Name })
			if d := cmp.Diff(tt.want, got); d != "" {
				t.Errorf("Diff() mismatch (-want +got):\n%s", d)
			}
		})
	}
}

func TestChangedFields(t *testing.T) {
	old := NewEntity("Article", Record{"title": "foo", "content": "a", "views": 1.0})
	cur := NewEntity("Article", Record{"title": "bar", "content": "a", "views": 1})

	got := slices.Collect(ChangedFields(old, cur, []string{"title", "content", "views"}))
	if d := cmp.Diff([]string{"title"}, got); d != "" {
		t.Errorf("ChangedFields() mismatch (-want +got):\n%s", d)
	}

	// Early stop must be honoured.
	count := 0
	for range ChangedFields(old, NewEntity("Article", nil), []string{"title", "content"}) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected iteration to stop after first name, got %d", count)
	}
}
