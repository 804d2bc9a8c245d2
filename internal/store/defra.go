package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackzampolin/kitab/internal/backoff"
	"github.com/jackzampolin/kitab/internal/defra"
)

const (
	defraBookFields = `book_id source_name title author subject chapters created_at`
	defraPageFields = `book_id physical_page logical_page text keywords raw_response prompt_hash processed_at`
)

// DefraConfig configures the DefraDB backend.
type DefraConfig struct {
	Client *defra.Client
	// Retry wraps every request. Default retries 5xx and transport failures.
	Retry  *backoff.Policy
	Logger *slog.Logger
	// SkipSchema skips applying collection schemas on open.
	SkipSchema bool
}

// Defra stores books and pages in a DefraDB node.
type Defra struct {
	client *defra.Client
	retry  backoff.Policy
	logger *slog.Logger
}

// OpenDefra checks the node is healthy and ensures the Book and Page
// collections exist.
func OpenDefra(ctx context.Context, cfg DefraConfig) (*Defra, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("defra client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	policy := backoff.Default().WithRetryIf(isTransientDefra).WithLogger(cfg.Logger)
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}

	s := &Defra{client: cfg.Client, retry: policy, logger: cfg.Logger}

	if err := policy.Do(ctx, func() error { return cfg.Client.HealthCheck(ctx) }); err != nil {
		return nil, fmt.Errorf("defra not reachable at %s: %w", cfg.Client.URL(), err)
	}
	if !cfg.SkipSchema {
		if err := defra.InitSchemas(ctx, cfg.Client, cfg.Logger); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func isTransientDefra(err error) bool {
	var serverErr *defra.ServerError
	var urlErr *url.Error
	return errors.As(err, &serverErr) || errors.As(err, &urlErr)
}

type defraBook struct {
	BookID     string `json:"book_id"`
	SourceName string `json:"source_name"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Subject    string `json:"subject"`
	Chapters   string `json:"chapters"`
	CreatedAt  string `json:"created_at"`
}

func (d defraBook) toBook() (Book, error) {
	b := Book{
		ID:         d.BookID,
		SourceName: d.SourceName,
		Title:      d.Title,
		Author:     d.Author,
		Subject:    d.Subject,
	}
	if d.Chapters != "" {
		if err := json.Unmarshal([]byte(d.Chapters), &b.Chapters); err != nil {
			return Book{}, fmt.Errorf("book %s: bad chapters field: %w", d.BookID, err)
		}
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, d.CreatedAt)
	return b, nil
}

type defraPage struct {
	BookID       string   `json:"book_id"`
	PhysicalPage int      `json:"physical_page"`
	LogicalPage  int      `json:"logical_page"`
	Text         string   `json:"text"`
	Keywords     []string `json:"keywords"`
	RawResponse  string   `json:"raw_response"`
	PromptHash   string   `json:"prompt_hash"`
	ProcessedAt  string   `json:"processed_at"`
}

func (d defraPage) toPage() Page {
	p := Page{
		BookID:       d.BookID,
		PhysicalPage: d.PhysicalPage,
		LogicalPage:  d.LogicalPage,
		Text:         d.Text,
		Keywords:     d.Keywords,
		RawResponse:  d.RawResponse,
		PromptHash:   d.PromptHash,
	}
	p.ProcessedAt, _ = time.Parse(time.RFC3339Nano, d.ProcessedAt)
	return p
}

// query runs a read and decodes the collection field into out.
func (s *Defra) query(ctx context.Context, collection, query string, vars map[string]any, out any) error {
	return s.retry.Do(ctx, func() error {
		resp, err := s.client.Execute(ctx, query, vars)
		if err != nil {
			return err
		}
		if msg := resp.Error(); msg != "" {
			return fmt.Errorf("query %s: %s", collection, msg)
		}
		return resp.Decode(collection, out)
	})
}

func (s *Defra) CreateBook(ctx context.Context, b *Book) error {
	if err := validateBook(b); err != nil {
		return err
	}
	if _, err := s.FindBookBySource(ctx, b.SourceName); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
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

	input := map[string]any{
		"book_id":     b.ID,
		"source_name": b.SourceName,
		"title":       b.Title,
		"author":      b.Author,
		"subject":     b.Subject,
		"chapters":    string(chapters),
		"created_at":  createdAt.Format(time.RFC3339Nano),
	}
	err = s.retry.Do(ctx, func() error {
		_, err := s.client.Create(ctx, "Book", input)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

func (s *Defra) GetBook(ctx context.Context, id string) (*Book, error) {
	if defra.ValidateID(id) != nil {
		return nil, ErrNotFound
	}
	return s.findBook(ctx, "book_id", id)
}

func (s *Defra) FindBookBySource(ctx context.Context, sourceName string) (*Book, error) {
	return s.findBook(ctx, "source_name", sourceName)
}

func (s *Defra) findBook(ctx context.Context, field, value string) (*Book, error) {
	q := fmt.Sprintf(`query($v: String) { Book(filter: {%s: {_eq: $v}}, limit: 1) { %s } }`, field, defraBookFields)
	var rows []defraBook
	if err := s.query(ctx, "Book", q, map[string]any{"v": value}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	b, err := rows[0].toBook()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Defra) ListBooks(ctx context.Context) ([]Book, error) {
	q := fmt.Sprintf(`{ Book(order: {created_at: DESC}) { %s } }`, defraBookFields)
	var rows []defraBook
	if err := s.query(ctx, "Book", q, nil, &rows); err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBook()
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

func (s *Defra) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	all, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	var out []Book
	for i := range all {
		if matchesQuery(&all[i], query) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (s *Defra) UpsertPage(ctx context.Context, p *Page) error {
	if err := validatePage(p); err != nil {
		return err
	}
	// Pages must reference an existing book, as in SQLite.
	if _, err := s.GetBook(ctx, p.BookID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("book %s: %w", p.BookID, ErrNotFound)
		}
		return err
	}
	processedAt := p.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	filter := map[string]any{
		"book_id":       map[string]any{"_eq": p.BookID},
		"physical_page": map[string]any{"_eq": p.PhysicalPage},
	}
	update := map[string]any{
		"logical_page": p.LogicalPage,
		"text":         p.Text,
		"keywords":     nonNilStrings(p.Keywords),
		"raw_response": p.RawResponse,
		"prompt_hash":  p.PromptHash,
		"processed_at": processedAt.Format(time.RFC3339Nano),
	}
	create := map[string]any{
		"book_id":       p.BookID,
		"physical_page": p.PhysicalPage,
	}
	for k, v := range update {
		create[k] = v
	}

	err := s.retry.Do(ctx, func() error {
		_, err := s.client.Upsert(ctx, "Page", filter, create, update)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert page %d: %w", p.PhysicalPage, err)
	}
	return nil
}

func (s *Defra) ProcessedPages(ctx context.Context, bookID string) (map[int]struct{}, error) {
	q := `query($b: String) { Page(filter: {book_id: {_eq: $b}}) { physical_page } }`
	var rows []defraPage
	if err := s.query(ctx, "Page", q, map[string]any{"b": bookID}, &rows); err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		set[r.PhysicalPage] = struct{}{}
	}
	return set, nil
}

func (s *Defra) Pages(ctx context.Context, bookID string) ([]Page, error) {
	q := fmt.Sprintf(`query($b: String) { Page(filter: {book_id: {_eq: $b}}, order: {physical_page: ASC}) { %s } }`, defraPageFields)
	return s.queryPages(ctx, q, map[string]any{"b": bookID})
}

func (s *Defra) PageByPhysical(ctx context.Context, bookID string, physical int) (*Page, error) {
	q := fmt.Sprintf(`query($b: String, $n: Int) { Page(filter: {book_id: {_eq: $b}, physical_page: {_eq: $n}}, limit: 1) { %s } }`, defraPageFields)
	pages, err := s.queryPages(ctx, q, map[string]any{"b": bookID, "n": physical})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNotFound
	}
	return &pages[0], nil
}

func (s *Defra) PagesByLogical(ctx context.Context, bookID string, logical int) ([]Page, error) {
	q := fmt.Sprintf(`query($b: String, $n: Int) { Page(filter: {book_id: {_eq: $b}, logical_page: {_eq: $n}}, order: {physical_page: ASC}) { %s } }`, defraPageFields)
	return s.queryPages(ctx, q, map[string]any{"b": bookID, "n": logical})
}

func (s *Defra) queryPages(ctx context.Context, q string, vars map[string]any) ([]Page, error) {
	var rows []defraPage
	if err := s.query(ctx, "Page", q, vars, &rows); err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(rows))
	for _, r := range rows {
		pages = append(pages, r.toPage())
	}
	return pages, nil
}

// Close is a no-op; the node outlives the store.
func (s *Defra) Close() error { return nil }

var _ Store = (*Defra)(nil)
