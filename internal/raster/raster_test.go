package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// minimalPDF builds a valid PDF with n blank pages and a correct xref.
func minimalPDF(n int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 200 200] /Resources << >> >>",
		strings.Join(kids, " "), n))
	for i := 0; i < n; i++ {
		obj("<< /Type /Page /Parent 2 0 R >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.pdf")
	if err := os.WriteFile(path, minimalPDF(pages), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileName_RoundTrip(t *testing.T) {
	for _, page := range []int{1, 9, 10, 123, 9999, 10000, 123456} {
		name := FileName(page)
		got, err := ParsePageNumber(name)
		if err != nil {
			t.Fatalf("ParsePageNumber(%q) error = %v", name, err)
		}
		if got != page {
			t.Errorf("round trip %d -> %q -> %d", page, name, got)
		}
	}
	if FileName(7) != "page_0007.png" {
		t.Errorf("FileName(7) = %q", FileName(7))
	}
}

func TestParsePageNumber(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"page_0001.png", 1, false},
		{"/tmp/scratch/page_0042.png", 42, false},
		{"page_0000.png", 0, true},
		{"page_12.png", 0, true},
		{"page_0001.jpg", 0, true},
		{"cover.png", 0, true},
		{"page_00a1.png", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePageNumber(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePageNumber(%q) = %d, %v", tt.name, got, err)
		}
	}
}

func TestPageCount(t *testing.T) {
	r := New(Config{})
	path := writePDF(t, 3)

	n, err := r.PageCount(context.Background(), path)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PageCount() = %d, want 3", n)
	}

	if _, err := r.PageCount(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

// fakePdftoppm records its arguments and writes <prefix>.png.
func fakePdftoppm(t *testing.T) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	dir := t.TempDir()
	bin = filepath.Join(dir, "pdftoppm")
	argsFile = filepath.Join(dir, "args")
	script := `#!/bin/sh
echo "$@" >> "` + argsFile + `"
for last; do :; done
printf 'PNG' > "$last.png"
`
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin, argsFile
}

func TestRender_Arguments(t *testing.T) {
	bin, argsFile := fakePdftoppm(t)
	r := New(Config{Pdftoppm: bin})
	dir := t.TempDir()

	img, err := r.Render(context.Background(), "/books/x.pdf", 12, dir)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if img.Page != 12 || img.Path != filepath.Join(dir, "page_0012.png") {
		t.Errorf("unexpected image %+v", img)
	}
	data, err := img.Read()
	if err != nil || string(data) != "PNG" {
		t.Errorf("Read() = %q, %v", data, err)
	}

	args, _ := os.ReadFile(argsFile)
	want := "-png -r 300 -f 12 -l 12 -singlefile /books/x.pdf " + filepath.Join(dir, "page_0012")
	if strings.TrimSpace(string(args)) != want {
		t.Errorf("args = %q\nwant %q", args, want)
	}

	if err := img.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := img.Remove(); err != nil {
		t.Errorf("second Remove() should be a no-op, got %v", err)
	}
}

func TestRenderRange(t *testing.T) {
	bin, _ := fakePdftoppm(t)
	r := New(Config{Pdftoppm: bin})
	dir := t.TempDir()

	images, err := r.RenderRange(context.Background(), "x.pdf", 2, 5, dir)
	if err != nil {
		t.Fatalf("RenderRange() error = %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images for [2,5), got %d", len(images))
	}
	for i, img := range images {
		n, err := ParsePageNumber(img.Path)
		if err != nil || n != i+2 {
			t.Errorf("image %d: page %d, err %v", i, n, err)
		}
	}

	if _, err := r.RenderRange(context.Background(), "x.pdf", 0, 2, dir); !errors.Is(err, ErrPageRange) {
		t.Errorf("expected ErrPageRange, got %v", err)
	}
	if got, err := r.RenderRange(context.Background(), "x.pdf", 3, 3, dir); err != nil || len(got) != 0 {
		t.Errorf("empty range = %v, %v", got, err)
	}
}

func TestRender_Failure(t *testing.T) {
	r := New(Config{Pdftoppm: "definitely-not-pdftoppm-kitab"})
	if _, err := r.Render(context.Background(), "x.pdf", 1, t.TempDir()); err == nil {
		t.Fatal("expected error for missing binary")
	}
	if err := r.CheckAvailable(); err == nil {
		t.Error("CheckAvailable() should fail for missing binary")
	}
	if _, err := r.Render(context.Background(), "x.pdf", 0, t.TempDir()); !errors.Is(err, ErrPageRange) {
		t.Errorf("expected ErrPageRange, got %v", err)
	}
}

func TestRender_Poppler(t *testing.T) {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed")
	}
	r := New(Config{})
	path := writePDF(t, 2)
	dir := t.TempDir()

	img, err := r.Render(context.Background(), path, 2, dir)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	data, err := img.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}
