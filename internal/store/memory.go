package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and dry runs.
type Memory struct {
	mu    sync.RWMutex
	books map[string]Book
	pages map[string]map[int]Page
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		books: make(map[string]Book),
		pages: make(map[string]map[int]Page),
	}
}

func (m *Memory) CreateBook(_ context.Context, b *Book) error {
	if err := validateBook(b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.books {
		if existing.SourceName == b.SourceName {
			return ErrDuplicate
		}
	}
	if _, ok := m.books[b.ID]; ok {
		return ErrDuplicate
	}
	m.books[b.ID] = cloneBook(*b)
	return nil
}

func (m *Memory) GetBook(_ context.Context, id string) (*Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneBook(b)
	return &out, nil
}

func (m *Memory) FindBookBySource(_ context.Context, sourceName string) (*Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.books {
		if b.SourceName == sourceName {
			out := cloneBook(b)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListBooks(ctx context.Context) ([]Book, error) {
	return m.SearchBooks(ctx, "")
}

func (m *Memory) SearchBooks(_ context.Context, query string) ([]Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Book
	for _, b := range m.books {
		if matchesQuery(&b, query) {
			out = append(out, cloneBook(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpsertPage(_ context.Context, p *Page) error {
	if err := validatePage(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[p.BookID]; !ok {
		return fmt.Errorf("book %s: %w", p.BookID, ErrNotFound)
	}
	byNum, ok := m.pages[p.BookID]
	if !ok {
		byNum = make(map[int]Page)
		m.pages[p.BookID] = byNum
	}
	byNum[p.PhysicalPage] = clonePage(*p)
	return nil
}

func (m *Memory) ProcessedPages(_ context.Context, bookID string) (map[int]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[int]struct{}, len(m.pages[bookID]))
	for n := range m.pages[bookID] {
		set[n] = struct{}{}
	}
	return set, nil
}

func (m *Memory) Pages(_ context.Context, bookID string) ([]Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Page, 0, len(m.pages[bookID]))
	for _, p := range m.pages[bookID] {
		out = append(out, clonePage(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhysicalPage < out[j].PhysicalPage })
	return out, nil
}

func (m *Memory) PageByPhysical(_ context.Context, bookID string, physical int) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[bookID][physical]
	if !ok {
		return nil, ErrNotFound
	}
	out := clonePage(p)
	return &out, nil
}

func (m *Memory) PagesByLogical(ctx context.Context, bookID string, logical int) ([]Page, error) {
	all, err := m.Pages(ctx, bookID)
	if err != nil {
		return nil, err
	}
	var out []Page
	for _, p := range all {
		if p.LogicalPage == logical {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func cloneBook(b Book) Book {
	if b.Chapters != nil {
		chapters := make([]Chapter, len(b.Chapters))
		for i, c := range b.Chapters {
			chapters[i] = c
			if c.NominalPage != nil {
				n := *c.NominalPage
				chapters[i].NominalPage = &n
			}
		}
		b.Chapters = chapters
	}
	return b
}

func clonePage(p Page) Page {
	if p.Keywords != nil {
		p.Keywords = append([]string(nil), p.Keywords...)
	}
	return p
}

var _ Store = (*Memory)(nil)
