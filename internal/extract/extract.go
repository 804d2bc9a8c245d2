package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/kitab/internal/prompts/metadata"
	"github.com/jackzampolin/kitab/internal/prompts/page"
	"github.com/jackzampolin/kitab/internal/store"
)

// sampleEdge is how many pages are taken from each end of a document
// for metadata extraction.
const sampleEdge = 5

// PageResult is a decoded page reply. Text is the oracle's markup before
// normalization.
type PageResult struct {
	Text        string
	Keywords    []string
	LogicalPage int
	Raw         json.RawMessage
	PromptHash  string
}

// Metadata is a decoded book metadata reply.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Chapters []store.Chapter
	Raw      json.RawMessage
}

// Image is one rendered page.
type Image struct {
	Page int // 1-based physical page
	PNG  []byte
}

// ExtractPage reads one page image.
func (s *Session) ExtractPage(ctx context.Context, png []byte) (*PageResult, error) {
	p, err := page.Prompt()
	if err != nil {
		return nil, fmt.Errorf("page prompt: %w", err)
	}

	var res page.Result
	raw, err := s.call(ctx, p, [][]byte{png}, s.pageSchema, &res)
	if err != nil {
		return nil, err
	}
	return &PageResult{
		Text:        res.Text,
		Keywords:    res.Keywords,
		LogicalPage: res.PageNumber,
		Raw:         raw,
		PromptHash:  p.Hash,
	}, nil
}

// ExtractMetadata sends every sampled page in one call. totalPages is the
// document length, used only in the instruction.
func (s *Session) ExtractMetadata(ctx context.Context, totalPages int, sample []Image) (*Metadata, error) {
	if len(sample) == 0 {
		return nil, fmt.Errorf("no pages sampled")
	}
	pages := make([]int, len(sample))
	images := make([][]byte, len(sample))
	for i, img := range sample {
		pages[i] = img.Page
		images[i] = img.PNG
	}

	p, err := metadata.Prompt(pages, totalPages)
	if err != nil {
		return nil, fmt.Errorf("metadata prompt: %w", err)
	}

	var res metadata.Result
	raw, err := s.call(ctx, p, images, s.metaSchema, &res)
	if err != nil {
		return nil, err
	}

	md := &Metadata{
		Title: strings.TrimSpace(res.Title),
		Raw:   raw,
	}
	if res.Author != nil {
		md.Author = strings.TrimSpace(*res.Author)
	}
	if res.Subject != nil {
		md.Subject = strings.TrimSpace(*res.Subject)
	}
	for _, ch := range res.Chapters {
		md.Chapters = append(md.Chapters, store.Chapter{
			Name:        strings.TrimSpace(ch.Name),
			NominalPage: ch.Nominal(),
		})
	}
	return md, nil
}

// MetadataSample returns the 1-based pages sent for metadata extraction:
// the first and last five, without duplicates, ascending.
func MetadataSample(total int) []int {
	out := make([]int, 0, 2*sampleEdge)
	seen := make(map[int]bool, 2*sampleEdge)
	add := func(i int) {
		if i < total && !seen[i] {
			seen[i] = true
			out = append(out, i+1)
		}
	}
	for i := 0; i < sampleEdge; i++ {
		add(i)
	}
	for i := max(sampleEdge, total-sampleEdge); i < total; i++ {
		add(i)
	}
	return out
}
