// Package chapters maps a book's nominal chapter outline onto the pages
// that were actually recovered.
package chapters

import "github.com/jackzampolin/kitab/internal/store"

// FullBook names the boundary that spans every stored page.
const FullBook = "Full Book"

// Boundary is a chapter range. Start and End are inclusive 0-based
// positions into the book's stored pages ordered by physical page.
type Boundary struct {
	Name  string `json:"name" yaml:"name"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// Empty reports whether the boundary covers no pages.
func (b Boundary) Empty() bool {
	return b.End < b.Start
}

// Len returns the number of pages covered.
func (b Boundary) Len() int {
	if b.Empty() {
		return 0
	}
	return b.End - b.Start + 1
}

// Slice returns the pages covered by b. pages must be the same ordered
// sequence b was resolved against.
func (b Boundary) Slice(pages []store.Page) []store.Page {
	if b.Empty() || b.Start >= len(pages) {
		return nil
	}
	end := b.End
	if end >= len(pages) {
		end = len(pages) - 1
	}
	return pages[b.Start : end+1]
}

// PhysicalPages returns the physical page numbers covered by b.
func (b Boundary) PhysicalPages(pages []store.Page) []int {
	covered := b.Slice(pages)
	out := make([]int, len(covered))
	for i, p := range covered {
		out[i] = p.PhysicalPage
	}
	return out
}

// Resolve anchors each outline entry to the first stored page carrying
// its nominal page number. Entries with no page number, entries that
// anchor to nothing and ranges that collapse are dropped. A chapter ends
// just before the next surviving chapter, the last one at the last stored
// page. The result always starts with the FullBook boundary.
func Resolve(outline []store.Chapter, pages []store.Page) []Boundary {
	last := len(pages) - 1
	full := Boundary{Name: FullBook, Start: 0, End: last}

	// First position for each logical page number.
	firstAt := make(map[int]int, len(pages))
	for i, p := range pages {
		if _, seen := firstAt[p.LogicalPage]; !seen {
			firstAt[p.LogicalPage] = i
		}
	}

	type anchor struct {
		name  string
		start int
	}
	var anchors []anchor
	for _, ch := range outline {
		if ch.NominalPage == nil {
			continue
		}
		start, ok := firstAt[*ch.NominalPage]
		if !ok {
			continue
		}
		anchors = append(anchors, anchor{name: ch.Name, start: start})
	}

	// Walk backwards so each end is measured against the next chapter
	// that survives, which keeps starts strictly increasing.
	kept := make([]Boundary, 0, len(anchors))
	nextStart := last + 1
	for i := len(anchors) - 1; i >= 0; i-- {
		a := anchors[i]
		end := nextStart - 1
		if a.start > end {
			continue
		}
		kept = append(kept, Boundary{Name: a.name, Start: a.start, End: end})
		nextStart = a.start
	}

	out := make([]Boundary, 0, len(kept)+1)
	out = append(out, full)
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}
	return out
}

// Find returns the boundary with the given name.
func Find(boundaries []Boundary, name string) (Boundary, bool) {
	for _, b := range boundaries {
		if b.Name == name {
			return b, true
		}
	}
	return Boundary{}, false
}
