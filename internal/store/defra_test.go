package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/kitab/internal/backoff"
	"github.com/jackzampolin/kitab/internal/defra"
)

// fakeDefra answers GraphQL requests with canned data keyed on the
// collection a query reads.
type fakeDefra struct {
	mu       sync.Mutex
	queries  []string
	schemas  int
	failures int // 502s to return before answering
	books    string
	pages    string
}

func (f *fakeDefra) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Path {
		case "/health-check":
			w.WriteHeader(http.StatusOK)
			return
		case "/api/v0/schema":
			f.schemas++
			w.WriteHeader(http.StatusOK)
			return
		}

		if f.failures > 0 {
			f.failures--
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		var req defra.GQLRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request: %v", err)
		}
		f.queries = append(f.queries, req.Query)

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "create_Book"):
			w.Write([]byte(`{"data": {"create_Book": [{"_docID": "bae-book"}]}}`))
		case strings.Contains(req.Query, "upsert_Page"):
			w.Write([]byte(`{"data": {"upsert_Page": [{"_docID": "bae-page"}]}}`))
		case strings.Contains(req.Query, "Book("), strings.Contains(req.Query, "Book {"):
			w.Write([]byte(`{"data": {"Book": ` + f.books + `}}`))
		default:
			w.Write([]byte(`{"data": {"Page": ` + f.pages + `}}`))
		}
	})
}

func newDefraStore(t *testing.T, f *fakeDefra) *Defra {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)

	retry := backoff.Default().WithRetryIf(isTransientDefra)
	retry.Delay = time.Millisecond
	s, err := OpenDefra(context.Background(), DefraConfig{
		Client: defra.NewClient(server.URL),
		Retry:  &retry,
	})
	if err != nil {
		t.Fatalf("OpenDefra() error = %v", err)
	}
	return s
}

func TestDefra_OpenAppliesSchemas(t *testing.T) {
	f := &fakeDefra{books: `[]`, pages: `[]`}
	newDefraStore(t, f)
	schemas, err := defra.Schemas()
	if err != nil {
		t.Fatal(err)
	}
	if f.schemas != len(schemas) {
		t.Errorf("applied %d schemas, want %d", f.schemas, len(schemas))
	}
}

func TestDefra_GetBook(t *testing.T) {
	f := &fakeDefra{
		books: `[{"book_id": "b1", "source_name": "تاريخ", "title": "تاريخ بغداد",
			"chapters": "[{\"name\":\"مقدمة\",\"page_number\":3},{\"name\":\"خاتمة\"}]",
			"created_at": "2024-01-02T03:04:05Z"}]`,
		pages: `[]`,
	}
	s := newDefraStore(t, f)

	b, err := s.GetBook(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetBook() error = %v", err)
	}
	if b.Title != "تاريخ بغداد" {
		t.Errorf("title = %q", b.Title)
	}
	if len(b.Chapters) != 2 || b.Chapters[0].NominalPage == nil || *b.Chapters[0].NominalPage != 3 {
		t.Errorf("chapters not decoded: %+v", b.Chapters)
	}
	if b.Chapters[1].NominalPage != nil {
		t.Errorf("missing page should stay nil, got %d", *b.Chapters[1].NominalPage)
	}
	if b.CreatedAt.Year() != 2024 {
		t.Errorf("created_at not parsed: %v", b.CreatedAt)
	}
}

func TestDefra_GetBook_NotFound(t *testing.T) {
	s := newDefraStore(t, &fakeDefra{books: `[]`, pages: `[]`})

	if _, err := s.GetBook(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetBook(context.Background(), `x"}`); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestDefra_CreateBook_Duplicate(t *testing.T) {
	s := newDefraStore(t, &fakeDefra{books: `[{"book_id": "b1", "source_name": "x"}]`, pages: `[]`})

	err := s.CreateBook(context.Background(), &Book{ID: "b2", SourceName: "x"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestDefra_CreateBook(t *testing.T) {
	f := &fakeDefra{books: `[]`, pages: `[]`}
	s := newDefraStore(t, f)

	err := s.CreateBook(context.Background(), &Book{ID: "b1", SourceName: "src", Title: "عنوان"})
	if err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}
	last := f.queries[len(f.queries)-1]
	if !strings.Contains(last, `create_Book(input: {author: "", book_id: "b1", chapters: "[]"`) {
		t.Errorf("unexpected mutation: %s", last)
	}
}

func TestDefra_UpsertPage(t *testing.T) {
	f := &fakeDefra{books: `[{"book_id": "b1", "source_name": "alpha"}]`, pages: `[]`}
	s := newDefraStore(t, f)

	err := s.UpsertPage(context.Background(), &Page{
		BookID: "b1", PhysicalPage: 4, LogicalPage: 2, Text: "<p>نص</p>", PromptHash: "3f2a",
	})
	if err != nil {
		t.Fatalf("UpsertPage() error = %v", err)
	}
	last := f.queries[len(f.queries)-1]
	if !strings.Contains(last, `upsert_Page(filter: {book_id: {_eq: "b1"}, physical_page: {_eq: 4}}`) {
		t.Errorf("upsert not keyed on book and physical page: %s", last)
	}
	if !strings.Contains(last, `keywords: []`) {
		t.Errorf("nil keywords should be sent as empty list: %s", last)
	}
	if !strings.Contains(last, `prompt_hash: "3f2a"`) {
		t.Errorf("prompt hash not sent: %s", last)
	}
}

func TestDefra_UpsertPage_UnknownBook(t *testing.T) {
	f := &fakeDefra{books: `[]`, pages: `[]`}
	s := newDefraStore(t, f)

	err := s.UpsertPage(context.Background(), &Page{BookID: "ghost", PhysicalPage: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	for _, q := range f.queries {
		if strings.Contains(q, "upsert_Page") {
			t.Errorf("page written for unknown book: %s", q)
		}
	}
}

func TestDefra_UpsertPage_Invalid(t *testing.T) {
	s := newDefraStore(t, &fakeDefra{books: `[]`, pages: `[]`})
	if err := s.UpsertPage(context.Background(), &Page{BookID: "b1"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestDefra_ProcessedPages(t *testing.T) {
	s := newDefraStore(t, &fakeDefra{
		books: `[]`,
		pages: `[{"physical_page": 3}, {"physical_page": 1}]`,
	})

	set, err := s.ProcessedPages(context.Background(), "b1")
	if err != nil {
		t.Fatalf("ProcessedPages() error = %v", err)
	}
	got := SortedPages(set)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("ProcessedPages() = %v", got)
	}
}

func TestDefra_RetriesServerErrors(t *testing.T) {
	f := &fakeDefra{books: `[]`, pages: `[{"book_id": "b1", "physical_page": 1, "text": "t"}]`}
	s := newDefraStore(t, f)
	f.failures = 2

	pages, err := s.Pages(context.Background(), "b1")
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "t" {
		t.Errorf("Pages() = %+v", pages)
	}
	if f.failures != 0 {
		t.Errorf("expected both failures consumed, %d left", f.failures)
	}
}

func TestDefra_GraphQLErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/graphql" {
			w.WriteHeader(http.StatusOK)
			return
		}
		calls++
		w.Write([]byte(`{"errors": [{"message": "bad filter"}]}`))
	}))
	defer server.Close()

	retry := backoff.Default().WithRetryIf(isTransientDefra)
	retry.Delay = time.Millisecond
	s, err := OpenDefra(context.Background(), DefraConfig{
		Client:     defra.NewClient(server.URL),
		Retry:      &retry,
		SkipSchema: true,
	})
	if err != nil {
		t.Fatalf("OpenDefra() error = %v", err)
	}

	if _, err := s.Pages(context.Background(), "b1"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("GraphQL error retried %d times", calls)
	}
}
