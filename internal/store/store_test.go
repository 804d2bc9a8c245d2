package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func intPtr(n int) *int { return &n }

// backends returns every Store implementation that runs without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(SQLiteConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func seedBook(t *testing.T, s Store, id, source string) *Book {
	t.Helper()
	b := &Book{
		ID:         id,
		SourceName: source,
		Title:      "كتاب " + source,
		Author:     "مؤلف",
		Subject:    "تاريخ",
		Chapters: []Chapter{
			{Name: "المقدمة", NominalPage: intPtr(1)},
			{Name: "الخاتمة"},
		},
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := s.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}
	return b
}

func TestStore_Books(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedBook(t, s, "b1", "alpha")

			t.Run("get by id", func(t *testing.T) {
				got, err := s.GetBook(ctx, "b1")
				if err != nil {
					t.Fatalf("GetBook() error = %v", err)
				}
				if got.SourceName != "alpha" || got.Author != "مؤلف" {
					t.Errorf("unexpected book: %+v", got)
				}
				if len(got.Chapters) != 2 {
					t.Fatalf("expected 2 chapters, got %d", len(got.Chapters))
				}
				if got.Chapters[0].NominalPage == nil || *got.Chapters[0].NominalPage != 1 {
					t.Errorf("expected first chapter page 1, got %v", got.Chapters[0].NominalPage)
				}
				if got.Chapters[1].NominalPage != nil {
					t.Errorf("expected absent page, got %v", *got.Chapters[1].NominalPage)
				}
				if !got.CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
					t.Errorf("unexpected created_at %v", got.CreatedAt)
				}
			})

			t.Run("find by source", func(t *testing.T) {
				got, err := s.FindBookBySource(ctx, "alpha")
				if err != nil {
					t.Fatalf("FindBookBySource() error = %v", err)
				}
				if got.ID != "b1" {
					t.Errorf("expected b1, got %s", got.ID)
				}
				if _, err := s.FindBookBySource(ctx, "missing"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("source name is unique", func(t *testing.T) {
				err := s.CreateBook(ctx, &Book{ID: "b2", SourceName: "alpha"})
				if !errors.Is(err, ErrDuplicate) {
					t.Errorf("expected ErrDuplicate, got %v", err)
				}
			})

			t.Run("missing id is invalid", func(t *testing.T) {
				if err := s.CreateBook(ctx, &Book{SourceName: "x"}); !errors.Is(err, ErrInvalid) {
					t.Errorf("expected ErrInvalid, got %v", err)
				}
			})

			t.Run("unknown id", func(t *testing.T) {
				if _, err := s.GetBook(ctx, "nope"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("search", func(t *testing.T) {
				seedBook(t, s, "b3", "beta")
				got, err := s.SearchBooks(ctx, "beta")
				if err != nil {
					t.Fatalf("SearchBooks() error = %v", err)
				}
				if len(got) != 1 || got[0].ID != "b3" {
					t.Errorf("expected only b3, got %+v", got)
				}

				got, err = s.SearchBooks(ctx, "تاريخ")
				if err != nil {
					t.Fatalf("SearchBooks() error = %v", err)
				}
				if len(got) != 2 {
					t.Errorf("expected both books by subject, got %d", len(got))
				}

				all, err := s.ListBooks(ctx)
				if err != nil {
					t.Fatalf("ListBooks() error = %v", err)
				}
				if len(all) != 2 {
					t.Errorf("expected 2 books, got %d", len(all))
				}
			})
		})
	}
}

func TestStore_Pages(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedBook(t, s, "b1", "alpha")

			for _, n := range []int{3, 1, 2} {
				err := s.UpsertPage(ctx, &Page{
					BookID:       "b1",
					PhysicalPage: n,
					LogicalPage:  n + 10,
					Text:         "<p>نص</p>",
					Keywords:     []string{"أ", "ب"},
				})
				if err != nil {
					t.Fatalf("UpsertPage(%d) error = %v", n, err)
				}
			}

			t.Run("ordered by physical page", func(t *testing.T) {
				pages, err := s.Pages(ctx, "b1")
				if err != nil {
					t.Fatalf("Pages() error = %v", err)
				}
				if len(pages) != 3 {
					t.Fatalf("expected 3 pages, got %d", len(pages))
				}
				for i, p := range pages {
					if p.PhysicalPage != i+1 {
						t.Errorf("position %d holds page %d", i, p.PhysicalPage)
					}
				}
				if len(pages[0].Keywords) != 2 || pages[0].Keywords[0] != "أ" {
					t.Errorf("keywords not preserved: %v", pages[0].Keywords)
				}
			})

			t.Run("upsert replaces in place", func(t *testing.T) {
				err := s.UpsertPage(ctx, &Page{BookID: "b1", PhysicalPage: 2, LogicalPage: 99, Text: "<p>جديد</p>"})
				if err != nil {
					t.Fatalf("UpsertPage() error = %v", err)
				}
				pages, _ := s.Pages(ctx, "b1")
				if len(pages) != 3 {
					t.Fatalf("upsert appended: %d pages", len(pages))
				}
				got, err := s.PageByPhysical(ctx, "b1", 2)
				if err != nil {
					t.Fatalf("PageByPhysical() error = %v", err)
				}
				if got.LogicalPage != 99 || got.Text != "<p>جديد</p>" {
					t.Errorf("page not replaced: %+v", got)
				}
			})

			t.Run("processed set", func(t *testing.T) {
				set, err := s.ProcessedPages(ctx, "b1")
				if err != nil {
					t.Fatalf("ProcessedPages() error = %v", err)
				}
				got := SortedPages(set)
				if len(got) != 3 || got[0] != 1 || got[2] != 3 {
					t.Errorf("unexpected processed set %v", got)
				}

				empty, err := s.ProcessedPages(ctx, "other")
				if err != nil {
					t.Fatalf("ProcessedPages() error = %v", err)
				}
				if len(empty) != 0 {
					t.Errorf("expected empty set, got %v", empty)
				}
			})

			t.Run("by logical page", func(t *testing.T) {
				got, err := s.PagesByLogical(ctx, "b1", 13)
				if err != nil {
					t.Fatalf("PagesByLogical() error = %v", err)
				}
				if len(got) != 1 || got[0].PhysicalPage != 3 {
					t.Errorf("expected physical page 3, got %+v", got)
				}
			})

			t.Run("missing page", func(t *testing.T) {
				if _, err := s.PageByPhysical(ctx, "b1", 42); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("prompt hash kept", func(t *testing.T) {
				err := s.UpsertPage(ctx, &Page{
					BookID: "b1", PhysicalPage: 4, Text: "<p>د</p>",
					RawResponse: `{"text":"<p>د</p>"}`, PromptHash: "3f2a",
				})
				if err != nil {
					t.Fatalf("UpsertPage() error = %v", err)
				}
				got, err := s.PageByPhysical(ctx, "b1", 4)
				if err != nil {
					t.Fatalf("PageByPhysical() error = %v", err)
				}
				if got.PromptHash != "3f2a" || got.RawResponse != `{"text":"<p>د</p>"}` {
					t.Errorf("raw response or prompt hash lost: %+v", got)
				}
			})

			t.Run("page for unknown book", func(t *testing.T) {
				err := s.UpsertPage(ctx, &Page{BookID: "ghost", PhysicalPage: 1})
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				set, _ := s.ProcessedPages(ctx, "ghost")
				if len(set) != 0 {
					t.Errorf("page stored for unknown book: %v", set)
				}
			})

			t.Run("page zero is invalid", func(t *testing.T) {
				if err := s.UpsertPage(ctx, &Page{BookID: "b1"}); !errors.Is(err, ErrInvalid) {
					t.Errorf("expected ErrInvalid, got %v", err)
				}
			})
		})
	}
}

func TestSQLite_AddsPromptHashColumn(t *testing.T) {
	path := t.TempDir() + "/old.db"
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE books (
			book_id TEXT PRIMARY KEY, source_name TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '', author TEXT NOT NULL DEFAULT '',
			subject TEXT NOT NULL DEFAULT '', chapters TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL);
		CREATE TABLE pages (
			book_id TEXT NOT NULL REFERENCES books(book_id) ON DELETE CASCADE,
			physical_page INTEGER NOT NULL, logical_page INTEGER NOT NULL DEFAULT 0,
			text TEXT NOT NULL DEFAULT '', keywords TEXT NOT NULL DEFAULT '[]',
			raw_response TEXT NOT NULL DEFAULT '', processed_at TEXT NOT NULL,
			PRIMARY KEY (book_id, physical_page));
		INSERT INTO books VALUES ('b1', 'alpha', '', '', '', '[]', '2024-01-02T03:04:05Z');
		INSERT INTO pages VALUES ('b1', 1, 1, '<p>أ</p>', '[]', '', '2024-01-02T03:04:05Z');`)
	if err != nil {
		t.Fatalf("seed old schema: %v", err)
	}
	db.Close()

	s, err := OpenSQLite(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenSQLite() on old database error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	old, err := s.PageByPhysical(ctx, "b1", 1)
	if err != nil {
		t.Fatalf("PageByPhysical() error = %v", err)
	}
	if old.PromptHash != "" || old.Text != "<p>أ</p>" {
		t.Errorf("old page = %+v", old)
	}
	if err := s.UpsertPage(ctx, &Page{BookID: "b1", PhysicalPage: 2, PromptHash: "9c1e"}); err != nil {
		t.Fatalf("UpsertPage() error = %v", err)
	}
	got, _ := s.PageByPhysical(ctx, "b1", 2)
	if got == nil || got.PromptHash != "9c1e" {
		t.Errorf("prompt hash not stored: %+v", got)
	}
}

func TestSQLite_Reopen(t *testing.T) {
	path := t.TempDir() + "/kitab.db"
	ctx := context.Background()

	s, err := OpenSQLite(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	seedBook(t, s, "b1", "alpha")
	if err := s.UpsertPage(ctx, &Page{BookID: "b1", PhysicalPage: 1, Text: "<p>أ</p>"}); err != nil {
		t.Fatalf("UpsertPage() error = %v", err)
	}
	s.Close()

	s, err = OpenSQLite(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	set, err := s.ProcessedPages(ctx, "b1")
	if err != nil {
		t.Fatalf("ProcessedPages() error = %v", err)
	}
	if _, ok := set[1]; !ok {
		t.Error("page 1 lost across reopen")
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("database table is locked"), true},
		{errors.New("no such table: pages"), false},
	}
	for _, tt := range tests {
		if got := IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
