package chapters

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/jackzampolin/kitab/internal/store"
)

func intPtr(n int) *int { return &n }

// pagesWithLogical builds stored pages 1..len(logical) carrying the given
// logical numbers.
func pagesWithLogical(logical ...int) []store.Page {
	pages := make([]store.Page, len(logical))
	for i, n := range logical {
		pages[i] = store.Page{BookID: "b", PhysicalPage: i + 1, LogicalPage: n}
	}
	return pages
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		outline []store.Chapter
		pages   []store.Page
		want    []Boundary
	}{
		{
			name: "anchored chapters",
			outline: []store.Chapter{
				{Name: "مقدمة", NominalPage: intPtr(1)},
				{Name: "الباب الأول", NominalPage: intPtr(3)},
				{Name: "الباب الثاني", NominalPage: intPtr(5)},
			},
			pages: pagesWithLogical(0, 1, 2, 3, 4, 5, 6),
			want: []Boundary{
				{Name: FullBook, Start: 0, End: 6},
				{Name: "مقدمة", Start: 1, End: 2},
				{Name: "الباب الأول", Start: 3, End: 4},
				{Name: "الباب الثاني", Start: 5, End: 6},
			},
		},
		{
			name: "absent page numbers dropped",
			outline: []store.Chapter{
				{Name: "a"},
				{Name: "b", NominalPage: intPtr(2)},
				{Name: "c"},
			},
			pages: pagesWithLogical(1, 2, 3),
			want: []Boundary{
				{Name: FullBook, Start: 0, End: 2},
				{Name: "b", Start: 1, End: 2},
			},
		},
		{
			name:    "all absent degrades to full book",
			outline: []store.Chapter{{Name: "a"}, {Name: "b"}},
			pages:   pagesWithLogical(1, 2, 3, 4),
			want:    []Boundary{{Name: FullBook, Start: 0, End: 3}},
		},
		{
			name:    "unanchored entry dropped",
			outline: []store.Chapter{{Name: "a", NominalPage: intPtr(1)}, {Name: "missing", NominalPage: intPtr(99)}},
			pages:   pagesWithLogical(1, 2),
			want: []Boundary{
				{Name: FullBook, Start: 0, End: 1},
				{Name: "a", Start: 0, End: 1},
			},
		},
		{
			name:    "duplicate logical numbers anchor to first",
			outline: []store.Chapter{{Name: "a", NominalPage: intPtr(7)}},
			pages:   pagesWithLogical(0, 7, 7, 8),
			want: []Boundary{
				{Name: FullBook, Start: 0, End: 3},
				{Name: "a", Start: 1, End: 3},
			},
		},
		{
			name: "same anchor collapses earlier chapter",
			outline: []store.Chapter{
				{Name: "a", NominalPage: intPtr(2)},
				{Name: "b", NominalPage: intPtr(2)},
			},
			pages: pagesWithLogical(1, 2, 3),
			want: []Boundary{
				{Name: FullBook, Start: 0, End: 2},
				{Name: "b", Start: 1, End: 2},
			},
		},
		{
			name: "out of order outline",
			outline: []store.Chapter{
				{Name: "a", NominalPage: intPtr(3)},
				{Name: "b", NominalPage: intPtr(10)},
				{Name: "c", NominalPage: intPtr(2)},
			},
			pages: pagesWithLogical(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
			want: []Boundary{
				{Name: FullBook, Start: 0, End: 10},
				{Name: "c", Start: 2, End: 10},
			},
		},
		{
			name:    "no pages",
			outline: []store.Chapter{{Name: "a", NominalPage: intPtr(1)}},
			pages:   nil,
			want:    []Boundary{{Name: FullBook, Start: 0, End: -1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.outline, tt.pages)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() =\n%+v\nwant\n%+v", got, tt.want)
			}
		})
	}
}

func TestResolve_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 500; iter++ {
		n := rng.Intn(30)
		logical := make([]int, n)
		for i := range logical {
			logical[i] = rng.Intn(20)
		}
		pages := pagesWithLogical(logical...)

		outline := make([]store.Chapter, rng.Intn(8))
		for i := range outline {
			outline[i].Name = string(rune('a' + i))
			if rng.Intn(4) > 0 {
				outline[i].NominalPage = intPtr(rng.Intn(20))
			}
		}

		got := Resolve(outline, pages)
		if len(got) == 0 || got[0].Name != FullBook {
			t.Fatalf("iteration %d: missing Full Book prefix: %+v", iter, got)
		}
		if got[0].Start != 0 || got[0].End != n-1 {
			t.Fatalf("iteration %d: Full Book = %+v, want 0..%d", iter, got[0], n-1)
		}
		for i, b := range got[1:] {
			if b.Start > b.End {
				t.Fatalf("iteration %d: degenerate boundary %+v", iter, b)
			}
			if b.End > n-1 {
				t.Fatalf("iteration %d: boundary past last page %+v", iter, b)
			}
			if i > 0 && b.Start < got[i].Start {
				t.Fatalf("iteration %d: starts decrease: %+v", iter, got)
			}
		}
	}
}

func TestBoundary_Slice(t *testing.T) {
	pages := pagesWithLogical(1, 2, 3, 4)

	b := Boundary{Name: "x", Start: 1, End: 2}
	if got := b.PhysicalPages(pages); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("PhysicalPages() = %v", got)
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d", b.Len())
	}

	empty := Boundary{Name: FullBook, Start: 0, End: -1}
	if !empty.Empty() || empty.Len() != 0 || empty.Slice(pages) != nil {
		t.Errorf("empty boundary should cover nothing")
	}
}

func TestFind(t *testing.T) {
	bs := Resolve([]store.Chapter{{Name: "الأول", NominalPage: intPtr(1)}}, pagesWithLogical(1, 2))

	if b, ok := Find(bs, "الأول"); !ok || b.Start != 0 {
		t.Errorf("Find() = %+v, %v", b, ok)
	}
	if _, ok := Find(bs, "missing"); ok {
		t.Error("Find() should miss unknown names")
	}
}
