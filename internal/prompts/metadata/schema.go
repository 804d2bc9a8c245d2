package metadata

var nullableInt = map[string]any{"type": []string{"integer", "null"}}

// Schema is the JSON schema a metadata reply must satisfy. start_page is
// accepted as an older spelling of page_number.
var Schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":   map[string]any{"type": "string"},
		"author":  map[string]any{"type": []string{"string", "null"}},
		"subject": map[string]any{"type": []string{"string", "null"}},
		"chapters": map[string]any{
			"type": []string{"array", "null"},
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"page_number": nullableInt,
					"start_page":  nullableInt,
				},
				"required": []string{"name"},
			},
		},
	},
	"required": []string{"title"},
}

// Chapter is one outline entry as the oracle returned it.
type Chapter struct {
	Name       string `json:"name"`
	PageNumber *int   `json:"page_number"`
	StartPage  *int   `json:"start_page"`
}

// Nominal returns page_number, falling back to start_page.
func (c Chapter) Nominal() *int {
	if c.PageNumber != nil {
		return c.PageNumber
	}
	return c.StartPage
}

// Result is the decoded metadata reply.
type Result struct {
	Title    string    `json:"title"`
	Author   *string   `json:"author"`
	Subject  *string   `json:"subject"`
	Chapters []Chapter `json:"chapters"`
}
