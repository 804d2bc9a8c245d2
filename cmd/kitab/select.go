package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/kitab/internal/chapters"
	"github.com/jackzampolin/kitab/internal/store"
)

// selection is a resolved set of stored pages to export or narrate.
type selection struct {
	Book  *store.Book
	Label string
	Pages []store.Page
}

// pageFilter picks pages by chapter name or by inclusive physical range.
// The zero value selects the whole book.
type pageFilter struct {
	Chapter string
	Start   int
	End     int // 0 means no upper bound
}

func loadSelection(ctx context.Context, st store.Store, bookID string, f pageFilter) (*selection, error) {
	book, err := st.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}
	pages, err := st.Pages(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	sel, err := selectPages(book, pages, f)
	if err != nil {
		return nil, err
	}
	if len(sel.Pages) == 0 {
		return nil, fmt.Errorf("no stored pages selected for %q", sel.Label)
	}
	return sel, nil
}

// selectPages applies f to a book's stored pages, ordered by physical page.
func selectPages(book *store.Book, pages []store.Page, f pageFilter) (*selection, error) {
	label := book.Title
	if label == "" {
		label = book.SourceName
	}

	switch {
	case f.Chapter != "":
		boundaries := chapters.Resolve(book.Chapters, pages)
		b, ok := chapters.Find(boundaries, f.Chapter)
		if !ok {
			names := make([]string, len(boundaries))
			for i, b := range boundaries {
				names[i] = b.Name
			}
			return nil, fmt.Errorf("chapter %q not found (have: %s)", f.Chapter, strings.Join(names, ", "))
		}
		return &selection{Book: book, Label: b.Name, Pages: b.Slice(pages)}, nil

	case f.Start > 0 || f.End > 0:
		if f.End > 0 && f.End < f.Start {
			return nil, fmt.Errorf("invalid page range %d-%d", f.Start, f.End)
		}
		var out []store.Page
		for _, p := range pages {
			if p.PhysicalPage < f.Start || (f.End > 0 && p.PhysicalPage > f.End) {
				continue
			}
			out = append(out, p)
		}
		return &selection{Book: book, Label: rangeLabel(label, f.Start, f.End), Pages: out}, nil

	default:
		return &selection{Book: book, Label: label, Pages: pages}, nil
	}
}

func rangeLabel(label string, start, end int) string {
	switch {
	case start == end:
		return fmt.Sprintf("%s %d", label, start)
	case end == 0:
		return fmt.Sprintf("%s %d-", label, start)
	default:
		return fmt.Sprintf("%s %d-%d", label, start, end)
	}
}

// defaultOutput names a file for label under dir.
func defaultOutput(dir, label, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
	if name == "" {
		name = "book"
	}
	return filepath.Join(dir, name+ext)
}
