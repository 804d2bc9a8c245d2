// Package metadata holds the book metadata prompt and its schema.
package metadata

import (
	_ "embed"
	"text/template"

	"github.com/jackzampolin/kitab/internal/prompts"
)

// Key identifies the metadata prompt in logs.
const Key = "oracle.metadata"

//go:embed metadata.tmpl
var promptText string

var tmpl = template.Must(template.New(Key).Parse(promptText))

// Prompt builds the metadata instruction for the sampled physical pages.
func Prompt(pages []int, totalPages int) (prompts.Prompt, error) {
	data := struct {
		Pages      []int
		TotalPages int
	}{Pages: pages, TotalPages: totalPages}
	return prompts.Render(Key, promptText, tmpl, data)
}
