package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/kitab/internal/backoff"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS books (
	book_id     TEXT PRIMARY KEY,
	source_name TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL DEFAULT '',
	author      TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	chapters    TEXT NOT NULL DEFAULT '[]',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	book_id       TEXT NOT NULL REFERENCES books(book_id) ON DELETE CASCADE,
	physical_page INTEGER NOT NULL,
	logical_page  INTEGER NOT NULL DEFAULT 0,
	text          TEXT NOT NULL DEFAULT '',
	keywords      TEXT NOT NULL DEFAULT '[]',
	raw_response  TEXT NOT NULL DEFAULT '',
	prompt_hash   TEXT NOT NULL DEFAULT '',
	processed_at  TEXT NOT NULL,
	PRIMARY KEY (book_id, physical_page)
);

CREATE INDEX IF NOT EXISTS pages_by_logical ON pages(book_id, logical_page);
`

const (
	bookColumns = `book_id, source_name, title, author, subject, chapters, created_at`
	pageColumns = `book_id, physical_page, logical_page, text, keywords, raw_response, prompt_hash, processed_at`
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:".
	Path string
	// BusyTimeout is applied as PRAGMA busy_timeout. Default 10s.
	BusyTimeout time.Duration
	// Retry wraps every statement. Default backoff.Default() limited to SQLITE_BUSY.
	Retry  *backoff.Policy
	Logger *slog.Logger
}

// SQLite stores books and pages in a single SQLite database.
type SQLite struct {
	db     *sql.DB
	retry  backoff.Policy
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database and applies the schema.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	policy := backoff.Default().WithRetryIf(IsBusy).WithLogger(cfg.Logger)
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	memory := cfg.Path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := addMissingColumns(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, retry: policy, logger: cfg.Logger}, nil
}

// addedColumns were introduced after the first schema; CREATE TABLE IF NOT
// EXISTS leaves older databases without them.
var addedColumns = []struct{ table, column, decl string }{
	{"pages", "prompt_hash", "TEXT NOT NULL DEFAULT ''"},
}

func addMissingColumns(db *sql.DB) error {
	for _, c := range addedColumns {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.column, c.decl)); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// IsBusy reports whether err is an SQLite lock contention error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func (s *SQLite) exec(ctx context.Context, query string, args ...any) error {
	return s.retry.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *SQLite) CreateBook(ctx context.Context, b *Book) error {
	if err := validateBook(b); err != nil {
		return err
	}
	chapters, err := json.Marshal(nonNilChapters(b.Chapters))
	if err != nil {
		return fmt.Errorf("failed to encode chapters: %w", err)
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err = s.exec(ctx, `INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.SourceName, b.Title, b.Author, b.Subject, string(chapters), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (s *SQLite) GetBook(ctx context.Context, id string) (*Book, error) {
	return s.queryBook(ctx, `SELECT `+bookColumns+` FROM books WHERE book_id = ?`, id)
}

func (s *SQLite) FindBookBySource(ctx context.Context, sourceName string) (*Book, error) {
	return s.queryBook(ctx, `SELECT `+bookColumns+` FROM books WHERE source_name = ?`, sourceName)
}

func (s *SQLite) queryBook(ctx context.Context, query string, args ...any) (*Book, error) {
	books, err := s.queryBooks(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, ErrNotFound
	}
	return &books[0], nil
}

func (s *SQLite) ListBooks(ctx context.Context) ([]Book, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at DESC, book_id`)
}

func (s *SQLite) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.ListBooks(ctx)
	}
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books
		WHERE instr(lower(title), ?) > 0 OR instr(lower(author), ?) > 0 OR instr(lower(subject), ?) > 0
		ORDER BY created_at DESC, book_id`, q, q, q)
}

func (s *SQLite) queryBooks(ctx context.Context, query string, args ...any) ([]Book, error) {
	var books []Book
	err := s.retry.Do(ctx, func() error {
		books = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				b                   Book
				chapters, createdAt string
			)
			if err := rows.Scan(&b.ID, &b.SourceName, &b.Title, &b.Author, &b.Subject, &chapters, &createdAt); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(chapters), &b.Chapters); err != nil {
				return fmt.Errorf("book %s: bad chapters column: %w", b.ID, err)
			}
			b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
			books = append(books, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	return books, nil
}

func (s *SQLite) UpsertPage(ctx context.Context, p *Page) error {
	if err := validatePage(p); err != nil {
		return err
	}
	keywords, err := json.Marshal(nonNilStrings(p.Keywords))
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	processedAt := p.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	err = s.exec(ctx, `INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, physical_page) DO UPDATE SET
			logical_page = excluded.logical_page,
			text = excluded.text,
			keywords = excluded.keywords,
			raw_response = excluded.raw_response,
			prompt_hash = excluded.prompt_hash,
			processed_at = excluded.processed_at`,
		p.BookID, p.PhysicalPage, p.LogicalPage, p.Text, string(keywords), p.RawResponse, p.PromptHash,
		processedAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("book %s: %w", p.BookID, ErrNotFound)
		}
		return fmt.Errorf("failed to upsert page %d: %w", p.PhysicalPage, err)
	}
	return nil
}

func (s *SQLite) ProcessedPages(ctx context.Context, bookID string) (map[int]struct{}, error) {
	set := make(map[int]struct{})
	err := s.retry.Do(ctx, func() error {
		clear(set)
		rows, err := s.db.QueryContext(ctx, `SELECT physical_page FROM pages WHERE book_id = ?`, bookID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var n int
			if err := rows.Scan(&n); err != nil {
				return err
			}
			set[n] = struct{}{}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query processed pages: %w", err)
	}
	return set, nil
}

func (s *SQLite) Pages(ctx context.Context, bookID string) ([]Page, error) {
	return s.queryPages(ctx, `SELECT `+pageColumns+` FROM pages WHERE book_id = ? ORDER BY physical_page`, bookID)
}

func (s *SQLite) PageByPhysical(ctx context.Context, bookID string, physical int) (*Page, error) {
	pages, err := s.queryPages(ctx, `SELECT `+pageColumns+` FROM pages WHERE book_id = ? AND physical_page = ?`, bookID, physical)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNotFound
	}
	return &pages[0], nil
}

func (s *SQLite) PagesByLogical(ctx context.Context, bookID string, logical int) ([]Page, error) {
	return s.queryPages(ctx, `SELECT `+pageColumns+` FROM pages WHERE book_id = ? AND logical_page = ? ORDER BY physical_page`, bookID, logical)
}

func (s *SQLite) queryPages(ctx context.Context, query string, args ...any) ([]Page, error) {
	var pages []Page
	err := s.retry.Do(ctx, func() error {
		pages = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				p                     Page
				keywords, processedAt string
			)
			if err := rows.Scan(&p.BookID, &p.PhysicalPage, &p.LogicalPage, &p.Text, &keywords, &p.RawResponse, &p.PromptHash, &processedAt); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
				return fmt.Errorf("page %d: bad keywords column: %w", p.PhysicalPage, err)
			}
			p.ProcessedAt, _ = time.Parse(time.RFC3339Nano, processedAt)
			pages = append(pages, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	return pages, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}

func nonNilChapters(c []Chapter) []Chapter {
	if c == nil {
		return []Chapter{}
	}
	return c
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Store = (*SQLite)(nil)
