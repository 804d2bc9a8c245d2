// Package ingest drives a source PDF through rasterization, oracle
// extraction and normalization into the page store.
//
// Pages are processed one at a time, paced by a process-wide limiter. A
// page either completes and is stored or is left for a later call; the
// store's processed set is the only resume state.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/jackzampolin/kitab/internal/extract"
	"github.com/jackzampolin/kitab/internal/normalize"
	"github.com/jackzampolin/kitab/internal/raster"
	"github.com/jackzampolin/kitab/internal/store"
)

// DefaultPageDelay is the minimum spacing between oracle calls.
const DefaultPageDelay = 1500 * time.Millisecond

var (
	// ErrMetadata is returned when a new book cannot be created because
	// metadata extraction failed. No book record exists afterwards.
	ErrMetadata = errors.New("book metadata extraction failed")

	// ErrNoDocument is returned when the request names no source file.
	ErrNoDocument = errors.New("no source document")
)

// Rasterizer counts and renders document pages.
type Rasterizer interface {
	PageCount(ctx context.Context, path string) (int, error)
	Render(ctx context.Context, path string, page int, dir string) (raster.Image, error)
	RenderRange(ctx context.Context, path string, from, to int, dir string) ([]raster.Image, error)
}

// toolChecker is implemented by rasterizers that run a local binary.
type toolChecker interface {
	CheckAvailable() error
}

// Extractor reads pages and book metadata from rendered images.
type Extractor interface {
	ExtractPage(ctx context.Context, png []byte) (*extract.PageResult, error)
	ExtractMetadata(ctx context.Context, totalPages int, sample []extract.Image) (*extract.Metadata, error)
}

// Request describes one ingestion call. Zero StartPage and EndPage select
// the whole document.
type Request struct {
	Document    string // path to the source PDF
	DisplayName string // defaults to the document's file name
	StartPage   int
	EndPage     int
	BookID      string // continue an existing book
}

// Report summarizes one ingestion call.
type Report struct {
	TotalPages     int   `json:"total_pages" yaml:"total_pages"`
	ProcessedPages []int `json:"processed_pages" yaml:"processed_pages"`
	NewlyProcessed []int `json:"newly_processed" yaml:"newly_processed"`
	SkippedPages   []int `json:"skipped_pages" yaml:"skipped_pages"`
	FailedPages    []int `json:"failed_pages" yaml:"failed_pages"`
}

// Config configures a Processor.
type Config struct {
	Store      store.Store
	Rasterizer Rasterizer
	Extractor  Extractor
	// ScratchDir is the parent of each call's image directory; empty uses
	// the system temp dir.
	ScratchDir string
	// PageDelay spaces oracle calls. Zero disables pacing.
	PageDelay time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

// Processor runs ingestion calls. Calls on one Processor share its pacing.
type Processor struct {
	store      store.Store
	raster     Rasterizer
	extractor  Extractor
	scratchDir string
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Processor.
func New(cfg Config) (*Processor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Rasterizer == nil {
		return nil, fmt.Errorf("rasterizer is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}

	return &Processor{
		store:      cfg.Store,
		raster:     cfg.Rasterizer,
		extractor:  cfg.Extractor,
		scratchDir: cfg.ScratchDir,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     cfg.Logger,
		now:        cfg.Now,
	}, nil
}

// CheckTools fails fast when the rasterizer's binary is missing.
func (p *Processor) CheckTools() error {
	if c, ok := p.raster.(toolChecker); ok {
		return c.CheckAvailable()
	}
	return nil
}

// Process ingests the requested page range and returns the book id with a
// report. Page failures are reported, not returned. The only hard failure
// after setup is ErrMetadata for a new book. On cancellation the partial
// report is returned with ctx.Err(); the page in flight still completes.
func (p *Processor) Process(ctx context.Context, req Request) (string, *Report, error) {
	if req.Document == "" {
		return "", nil, ErrNoDocument
	}

	scratch, err := os.MkdirTemp(p.scratchDir, "ingest-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			p.logger.Warn("failed to remove scratch dir", "path", scratch, "error", err)
		}
	}()

	total, err := p.raster.PageCount(ctx, req.Document)
	if err != nil {
		return "", nil, err
	}

	book, err := p.resolveBook(ctx, req, total, scratch)
	if err != nil {
		return "", nil, err
	}
	log := p.logger.With("book_id", book.ID)

	start := max(req.StartPage, 1)
	end := req.EndPage
	if end <= 0 || end > total {
		end = total
	}

	processed, err := p.store.ProcessedPages(ctx, book.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load processed pages: %w", err)
	}

	report := &Report{
		TotalPages:     total,
		NewlyProcessed: []int{},
		SkippedPages:   []int{},
		FailedPages:    []int{},
	}
	finish := func() *Report {
		report.ProcessedPages = store.SortedPages(processed)
		return report
	}

	log.Info("processing pages", "from", start, "to", end, "total", total, "stored", len(processed))
	for page := start; page <= end; page++ {
		if _, ok := processed[page]; ok {
			report.SkippedPages = append(report.SkippedPages, page)
			continue
		}
		if err := ctx.Err(); err != nil {
			return book.ID, finish(), err
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return book.ID, finish(), err
		}

		started := time.Now()
		if err := p.processPage(context.WithoutCancel(ctx), book.ID, req.Document, page, scratch); err != nil {
			log.Warn("page left unprocessed", "page", page, "error", err)
			report.FailedPages = append(report.FailedPages, page)
			continue
		}
		processed[page] = struct{}{}
		report.NewlyProcessed = append(report.NewlyProcessed, page)
		log.Debug("page stored", "page", page, "elapsed", time.Since(started))
	}

	log.Info("processing complete",
		"new", len(report.NewlyProcessed),
		"skipped", len(report.SkippedPages),
		"failed", len(report.FailedPages))
	return book.ID, finish(), nil
}

// resolveBook returns the book named by the request, creating it from
// sampled metadata when no book with the cleaned name exists.
func (p *Processor) resolveBook(ctx context.Context, req Request, total int, scratch string) (*store.Book, error) {
	if req.BookID != "" {
		book, err := p.store.GetBook(ctx, req.BookID)
		if err != nil {
			return nil, fmt.Errorf("book %s: %w", req.BookID, err)
		}
		return book, nil
	}

	display := req.DisplayName
	if display == "" {
		display = filepath.Base(req.Document)
	}
	name := CleanName(display)
	if name == "" {
		return nil, fmt.Errorf("display name %q is empty after cleaning", display)
	}

	book, err := p.store.FindBookBySource(ctx, name)
	if err == nil {
		p.logger.Info("continuing existing book", "book_id", book.ID, "source_name", name)
		return book, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up book: %w", err)
	}

	md, err := p.extractMetadata(ctx, req.Document, total, scratch)
	if err != nil {
		p.logger.Error("metadata extraction failed", "source_name", name, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}

	book = &store.Book{
		ID:         uuid.NewString(),
		SourceName: name,
		Title:      md.Title,
		Author:     md.Author,
		Subject:    md.Subject,
		Chapters:   md.Chapters,
		CreatedAt:  p.now().UTC(),
	}
	if book.Title == "" {
		book.Title = name
	}
	if err := p.store.CreateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return p.store.FindBookBySource(ctx, name)
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	p.logger.Info("created book",
		"book_id", book.ID,
		"source_name", name,
		"title", book.Title,
		"chapters", len(book.Chapters))
	return book, nil
}

func (p *Processor) extractMetadata(ctx context.Context, doc string, total int, scratch string) (*extract.Metadata, error) {
	var sample []extract.Image
	for _, run := range pageRuns(extract.MetadataSample(total)) {
		// A page that fails to render is skipped; the rest of its run is
		// still attempted.
		for from, to := run[0], run[1]; from < to; {
			images, err := p.raster.RenderRange(ctx, doc, from, to, scratch)
			for _, img := range images {
				png, rerr := img.Read()
				p.removeImage(img)
				if rerr != nil {
					p.logger.Warn("failed to read metadata sample page", "page", img.Page, "error", rerr)
					continue
				}
				sample = append(sample, extract.Image{Page: img.Page, PNG: png})
			}
			from += len(images)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.logger.Warn("failed to render metadata sample page", "page", from, "error", err)
				from++
			}
		}
	}
	if len(sample) == 0 {
		return nil, fmt.Errorf("no sample pages could be rendered")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.extractor.ExtractMetadata(ctx, total, sample)
}

// pageRuns groups ascending pages into half-open [from, to) runs.
func pageRuns(pages []int) [][2]int {
	var runs [][2]int
	for _, n := range pages {
		if k := len(runs) - 1; k >= 0 && runs[k][1] == n {
			runs[k][1] = n + 1
			continue
		}
		runs = append(runs, [2]int{n, n + 1})
	}
	return runs
}

func (p *Processor) processPage(ctx context.Context, bookID, doc string, page int, scratch string) error {
	img, err := p.raster.Render(ctx, doc, page, scratch)
	if err != nil {
		return fmt.Errorf("rasterize: %w", err)
	}
	defer p.removeImage(img)

	png, err := img.Read()
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	res, err := p.extractor.ExtractPage(ctx, png)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	text, err := normalize.Markup(res.Text)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	return p.store.UpsertPage(ctx, &store.Page{
		BookID:       bookID,
		PhysicalPage: page,
		LogicalPage:  res.LogicalPage,
		Text:         text,
		Keywords:     cleanKeywords(res.Keywords),
		RawResponse:  string(res.Raw),
		PromptHash:   res.PromptHash,
		ProcessedAt:  p.now().UTC(),
	})
}

func (p *Processor) removeImage(img raster.Image) {
	if err := img.Remove(); err != nil {
		p.logger.Warn("failed to remove page image", "path", img.Path, "error", err)
	}
}

// Status describes what is stored for a book.
type Status struct {
	BookID      string `json:"book_id" yaml:"book_id"`
	StoredPages int    `json:"stored_pages" yaml:"stored_pages"`
	MaxPage     int    `json:"max_page" yaml:"max_page"`
	// Gaps lists pages below MaxPage that are not stored.
	Gaps []int `json:"gaps" yaml:"gaps"`
}

// Status reports the stored pages of a book.
func (p *Processor) Status(ctx context.Context, bookID string) (*Status, error) {
	if _, err := p.store.GetBook(ctx, bookID); err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}
	processed, err := p.store.ProcessedPages(ctx, bookID)
	if err != nil {
		return nil, err
	}

	pages := store.SortedPages(processed)
	st := &Status{BookID: bookID, StoredPages: len(pages), Gaps: []int{}}
	if len(pages) == 0 {
		return st, nil
	}
	st.MaxPage = pages[len(pages)-1]
	for n := 1; n < st.MaxPage; n++ {
		if _, ok := processed[n]; !ok {
			st.Gaps = append(st.Gaps, n)
		}
	}
	return st, nil
}

var nameNoise = regexp.MustCompile(`[\p{Nd}()\[\]]`)

// CleanName derives a book's source name from a display name: the
// extension, digits and round or square brackets are removed and the result
// is NFC-normalized.
func CleanName(display string) string {
	base := filepath.Base(strings.TrimSpace(display))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(nameNoise.ReplaceAllString(norm.NFC.String(base), ""))
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
