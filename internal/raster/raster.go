// Package raster renders PDF pages to PNG images for the oracle.
//
// Images are written into a directory the caller owns and must remove.
// The file name carries the 1-based physical page number, which is the
// only key used downstream.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// DPI is the fixed render resolution.
const DPI = 300

const defaultPdftoppm = "pdftoppm"

// ErrPageRange is returned for pages outside 1..PageCount.
var ErrPageRange = errors.New("page out of range")

var fileNamePattern = regexp.MustCompile(`^page_(\d{4,})\.png$`)

// FileName returns the image name for a physical page.
func FileName(page int) string {
	return fmt.Sprintf("page_%04d.png", page)
}

// ParsePageNumber recovers the physical page from an image name or path.
func ParsePageNumber(name string) (int, error) {
	m := fileNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, fmt.Errorf("not a page image name: %q", name)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("bad page number in %q", name)
	}
	return n, nil
}

// Image is one rendered page on disk.
type Image struct {
	Page int
	Path string
}

// Read returns the PNG bytes.
func (i Image) Read() ([]byte, error) {
	return os.ReadFile(i.Path)
}

// Remove deletes the image file. A missing file is not an error.
func (i Image) Remove() error {
	if err := os.Remove(i.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Config configures a Rasterizer.
type Config struct {
	// Pdftoppm is the poppler binary; defaults to "pdftoppm" on PATH.
	Pdftoppm string
	Logger   *slog.Logger
}

// Rasterizer counts and renders PDF pages.
type Rasterizer struct {
	pdftoppm string
	logger   *slog.Logger
}

// New creates a Rasterizer.
func New(cfg Config) *Rasterizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = defaultPdftoppm
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Rasterizer{pdftoppm: cfg.Pdftoppm, logger: cfg.Logger}
}

// PageCount returns the number of pages in the PDF at path.
func (r *Rasterizer) PageCount(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

// Render renders one 1-based page into dir.
func (r *Rasterizer) Render(ctx context.Context, path string, page int, dir string) (Image, error) {
	if page < 1 {
		return Image{}, fmt.Errorf("%w: %d", ErrPageRange, page)
	}

	// -singlefile writes <prefix>.png with no page suffix.
	img := Image{Page: page, Path: filepath.Join(dir, FileName(page))}
	prefix := strings.TrimSuffix(img.Path, ".png")
	pageStr := strconv.Itoa(page)

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.pdftoppm,
		"-png",
		"-r", strconv.Itoa(DPI),
		"-f", pageStr,
		"-l", pageStr,
		"-singlefile",
		path,
		prefix,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = img.Remove()
		return Image{}, fmt.Errorf("pdftoppm failed on page %d: %w (output: %s)", page, err, strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(img.Path); err != nil {
		return Image{}, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	r.logger.Debug("rendered page", "page", page, "elapsed", time.Since(start))
	return img, nil
}

// RenderRange renders pages [from, to). On error it returns the images
// rendered so far; they are still in dir.
func (r *Rasterizer) RenderRange(ctx context.Context, path string, from, to int, dir string) ([]Image, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrPageRange, from, to)
	}
	images := make([]Image, 0, to-from)
	for page := from; page < to; page++ {
		if err := ctx.Err(); err != nil {
			return images, err
		}
		img, err := r.Render(ctx, path, page, dir)
		if err != nil {
			return images, err
		}
		images = append(images, img)
	}
	return images, nil
}

// CheckAvailable reports whether the pdftoppm binary can be found.
func (r *Rasterizer) CheckAvailable() error {
	if _, err := exec.LookPath(r.pdftoppm); err != nil {
		return fmt.Errorf("%s not found in PATH (install poppler-utils): %w", r.pdftoppm, err)
	}
	return nil
}
