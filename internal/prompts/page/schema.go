package page

// Schema is the JSON schema a page reply must satisfy.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"text": map[string]any{
			"type":        "string",
			"description": "Page body as p/ol/li HTML",
		},
		"keywords": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Search phrases, most important first",
		},
		"page_number": map[string]any{
			"type":        "integer",
			"minimum":     0,
			"description": "Printed page number, 0 when unknown",
		},
	},
	"required": []string{"text", "keywords", "page_number"},
}

// Result is the decoded page reply.
type Result struct {
	Text       string   `json:"text"`
	Keywords   []string `json:"keywords"`
	PageNumber int      `json:"page_number"`
}
