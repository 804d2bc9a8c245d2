// Package api renders command results for the CLI.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format for CLI commands.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// DefaultOutput is the default output format.
const DefaultOutput = OutputFormatYAML

// ParseOutputFormat accepts "yaml", "yml" or "json", case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return OutputFormatYAML, nil
	case "json":
		return OutputFormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want yaml or json)", s)
	}
}

// Printer writes results in one format.
type Printer struct {
	w      io.Writer
	format OutputFormat
}

// NewPrinter returns a Printer writing to w. A nil w writes to stdout.
func NewPrinter(w io.Writer, format OutputFormat) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, format: format}
}

// Format returns the printer's format.
func (p *Printer) Format() OutputFormat {
	return p.format
}

// Print writes data in the printer's format.
func (p *Printer) Print(data any) error {
	return OutputTo(p.w, p.format, data)
}

// OutputTo writes data to the given writer in the specified format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		// Page markup is stored as HTML; keep it readable.
		enc.SetEscapeHTML(false)
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
