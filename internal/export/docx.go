// Package export writes stored pages as a right-to-left Word document.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackzampolin/kitab/internal/store"
)

// ContentType is the MIME type of a DOCX package.
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	DefaultFont   = "Traditional Arabic"
	DefaultSizePt = 14
)

// Options controls document content.
type Options struct {
	// Title, when set, opens the document as a bold centered paragraph.
	Title  string
	Font   string
	SizePt int
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Font == "" {
		o.Font = DefaultFont
	}
	if o.SizePt <= 0 {
		o.SizePt = DefaultSizePt
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const (
	documentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	documentClose = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/>` +
		`<w:bidi/></w:sectPr></w:body></w:document>`
	separatorXML = `<w:p><w:pPr><w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="auto"/></w:pBdr><w:bidi/></w:pPr></w:p>`
)

// DOCX writes pages, in the order given, as a DOCX package to w. Pages
// without text are skipped; a bordered separator follows every page written.
func DOCX(w io.Writer, pages []store.Page, opts Options) error {
	opts.defaults()

	doc, exported, err := documentXML(pages, opts)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(relsXML)},
		{"word/document.xml", doc},
	}
	for _, part := range parts {
		fw, err := zw.Create(part.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", part.name, err)
		}
		if _, err := fw.Write(part.body); err != nil {
			return fmt.Errorf("failed to write %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish docx: %w", err)
	}

	opts.Logger.Debug("wrote docx", "pages", exported, "skipped", len(pages)-exported)
	return nil
}

func documentXML(pages []store.Page, opts Options) ([]byte, int, error) {
	var buf bytes.Buffer
	buf.WriteString(documentOpen)

	if title := strings.TrimSpace(opts.Title); title != "" {
		writeParagraph(&buf, title, opts, true)
	}

	exported := 0
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		paras, err := Paragraphs(page.Text)
		if err != nil {
			return nil, 0, fmt.Errorf("page %d: %w", page.PhysicalPage, err)
		}
		if len(paras) == 0 {
			continue
		}
		for _, p := range paras {
			writeParagraph(&buf, p, opts, false)
		}
		buf.WriteString(separatorXML)
		exported++
	}

	buf.WriteString(documentClose)
	return buf.Bytes(), exported, nil
}

func writeParagraph(buf *bytes.Buffer, text string, opts Options, title bool) {
	jc := "right"
	if title {
		jc = "center"
	}
	size := strconv.Itoa(opts.SizePt * 2) // half-points

	buf.WriteString(`<w:p><w:pPr><w:bidi/><w:jc w:val="` + jc + `"/></w:pPr><w:r><w:rPr>`)
	buf.WriteString(`<w:rFonts w:ascii="`)
	xml.EscapeText(buf, []byte(opts.Font))
	buf.WriteString(`" w:hAnsi="`)
	xml.EscapeText(buf, []byte(opts.Font))
	buf.WriteString(`" w:cs="`)
	xml.EscapeText(buf, []byte(opts.Font))
	buf.WriteString(`"/>`)
	if title {
		buf.WriteString(`<w:b/><w:bCs/>`)
	}
	buf.WriteString(`<w:sz w:val="` + size + `"/><w:szCs w:val="` + size + `"/><w:rtl/></w:rPr>`)
	buf.WriteString(`<w:t xml:space="preserve">`)
	xml.EscapeText(buf, []byte(text))
	buf.WriteString(`</w:t></w:r></w:p>`)
}
