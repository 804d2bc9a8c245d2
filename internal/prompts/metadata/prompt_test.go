package metadata

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jackzampolin/kitab/internal/providers"
)

func TestPrompt(t *testing.T) {
	p, err := Prompt([]int{1, 2, 9, 10}, 10)
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	if !strings.Contains(p.Text, "physical pages 1, 2, 9, 10") {
		t.Errorf("sampled pages not rendered: %s", p.Text)
	}
	if !strings.Contains(p.Text, "4 scanned pages") || !strings.Contains(p.Text, "book of 10 pages") {
		t.Errorf("counts not rendered: %s", p.Text)
	}

	again, _ := Prompt([]int{3}, 3)
	if again.Hash != p.Hash {
		t.Error("hash should track the template, not the rendered text")
	}
}

func TestChapterNominal(t *testing.T) {
	one, two := 1, 2
	tests := []struct {
		name string
		ch   Chapter
		want *int
	}{
		{"page_number wins", Chapter{PageNumber: &one, StartPage: &two}, &one},
		{"start_page fallback", Chapter{StartPage: &two}, &two},
		{"absent", Chapter{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ch.Nominal(); got != tt.want {
				t.Errorf("Nominal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchema(t *testing.T) {
	raw, err := json.Marshal(Schema)
	if err != nil {
		t.Fatal(err)
	}
	valid := `{"title": "كتاب", "author": null, "chapters": [{"name": "مقدمة", "page_number": null}, {"name": "الأول", "start_page": 4}]}`
	if err := providers.ValidateJSON(raw, json.RawMessage(valid)); err != nil {
		t.Errorf("valid metadata rejected: %v", err)
	}
	for _, doc := range []string{
		`{"author": "x"}`,
		`{"title": "x", "chapters": [{"page_number": 1}]}`,
		`{"title": "x", "chapters": [{"name": "a", "page_number": "1"}]}`,
	} {
		if err := providers.ValidateJSON(raw, json.RawMessage(doc)); err == nil {
			t.Errorf("invalid metadata accepted: %s", doc)
		}
	}
}
