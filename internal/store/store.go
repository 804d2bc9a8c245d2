// Package store persists books and their recovered pages.
//
// Pages are keyed by (book_id, physical_page). Writing the same key again
// replaces the record, so re-running ingestion over a range never
// duplicates pages. ProcessedPages is the resumability contract.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a book or page does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a book with the same source name exists.
	ErrDuplicate = errors.New("duplicate source name")

	// ErrInvalid is returned for records missing their key fields.
	ErrInvalid = errors.New("invalid record")
)

// Chapter is a nominal outline entry recovered from book metadata.
// NominalPage is nil when the oracle could not place the chapter.
type Chapter struct {
	Name        string `json:"name" yaml:"name"`
	NominalPage *int   `json:"page_number,omitempty" yaml:"page_number,omitempty"`
}

// Book is one ingested source document.
type Book struct {
	ID         string    `json:"book_id" yaml:"book_id"`
	SourceName string    `json:"source_name" yaml:"source_name"`
	Title      string    `json:"title" yaml:"title"`
	Author     string    `json:"author" yaml:"author"`
	Subject    string    `json:"subject" yaml:"subject"`
	Chapters   []Chapter `json:"chapters" yaml:"chapters"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Page is the normalized extraction result for one physical page.
type Page struct {
	BookID       string    `json:"book_id" yaml:"book_id"`
	PhysicalPage int       `json:"physical_page" yaml:"physical_page"`
	LogicalPage  int       `json:"logical_page" yaml:"logical_page"`
	Text         string    `json:"text" yaml:"text"`
	Keywords     []string  `json:"keywords" yaml:"keywords"`
	RawResponse  string    `json:"raw_response,omitempty" yaml:"raw_response,omitempty"`
	// PromptHash identifies the instruction wording that produced RawResponse.
	PromptHash   string    `json:"prompt_hash,omitempty" yaml:"prompt_hash,omitempty"`
	ProcessedAt  time.Time `json:"processed_at" yaml:"processed_at"`
}

// Store is implemented by every persistence backend.
type Store interface {
	CreateBook(ctx context.Context, b *Book) error
	GetBook(ctx context.Context, id string) (*Book, error)
	FindBookBySource(ctx context.Context, sourceName string) (*Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	SearchBooks(ctx context.Context, query string) ([]Book, error)

	UpsertPage(ctx context.Context, p *Page) error
	ProcessedPages(ctx context.Context, bookID string) (map[int]struct{}, error)
	Pages(ctx context.Context, bookID string) ([]Page, error)
	PageByPhysical(ctx context.Context, bookID string, physical int) (*Page, error)
	PagesByLogical(ctx context.Context, bookID string, logical int) ([]Page, error)

	Close() error
}

func validateBook(b *Book) error {
	if b == nil || b.ID == "" || b.SourceName == "" {
		return ErrInvalid
	}
	return nil
}

func validatePage(p *Page) error {
	if p == nil || p.BookID == "" || p.PhysicalPage < 1 {
		return ErrInvalid
	}
	return nil
}

// SortedPages returns the keys of a processed set in ascending order.
func SortedPages(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// matchesQuery reports whether any of the book's descriptive fields
// contains query, ignoring case.
func matchesQuery(b *Book, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{b.Title, b.Author, b.Subject} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
