// Package prompts holds the oracle instructions. Embedded .tmpl files in
// the subpackages are the source of truth; each prompt carries a hash of
// its text so stored responses can be traced to the exact wording.
package prompts

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"text/template"
)

// Prompt is a rendered instruction ready to send.
type Prompt struct {
	Key  string // Hierarchical key: oracle.page
	Text string
	Hash string // SHA256 of the template text, not the rendered output
}

// HashText returns a SHA256 hash of the text for change detection.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Render executes tmpl with data.
func Render(key, source string, tmpl *template.Template, data any) (Prompt, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Prompt{}, err
	}
	return Prompt{Key: key, Text: buf.String(), Hash: HashText(source)}, nil
}
