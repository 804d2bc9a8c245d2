package speech

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "مرحبا", "مرحبا"},
		{"paragraphs", "<p>الفصل الأول</p><p>نص</p>", "الفصل الأول نص"},
		{"inline tags", "<p>قال <b>الشيخ</b>:</p>", "قال الشيخ :"},
		{"entities", "<p>أ &amp; ب &lt;ج&gt;</p>", "أ & ب <ج>"},
		{"lrm wrapped digits", "<p>سنة \u200e1990\u200e م</p>", "سنة 1990 م"},
		{"bidi and zero width", "\u202bنص\u202c\u200bآخر\ufeff", "نصآخر"},
		{"control characters", "سطر\x00أول\nسطر\tثان", "سطر أول سطر ثان"},
		{"whitespace runs", "  أ   \n\n  ب  ", "أ ب"},
		{"script dropped", "<p>نص</p><script>alert(1)</script>", "نص"},
		{"empty", "", ""},
		{"only markup", "<p></p><br/>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{"empty", "", 10, nil},
		{"shorter than size", "abc", 10, []string{"abc"}},
		{"exact size", "abcd", 4, []string{"abcd"}},
		{"fixed boundaries", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"runes not bytes", "أبجدهوز", 3, []string{"أبج", "دهو", "ز"}},
		{"non-positive size", "abc", 0, []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunk() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunk_Reassembles(t *testing.T) {
	text := strings.Repeat("بسم الله ", 500)
	chunks := Chunk(text, 333)
	if strings.Join(chunks, "") != text {
		t.Fatal("chunks do not reassemble the input")
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 333 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
}
