// Package page holds the per-page extraction prompt and its schema.
package page

import (
	_ "embed"
	"text/template"

	"github.com/jackzampolin/kitab/internal/prompts"
)

// Key identifies the page prompt in logs and stored responses.
const Key = "oracle.page"

//go:embed page.tmpl
var promptText string

var tmpl = template.Must(template.New(Key).Parse(promptText))

// Prompt returns the fixed page instruction.
func Prompt() (prompts.Prompt, error) {
	return prompts.Render(Key, promptText, tmpl, nil)
}
