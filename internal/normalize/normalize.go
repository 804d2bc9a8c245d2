// Package normalize rewrites oracle markup into canonical page text.
//
// The oracle returns a small HTML fragment (p, ol, li). Footnote lists are
// dropped, digits are unified so bracket patterns match regardless of
// script, inline footnote markers and editorial bracket notes are removed,
// digits are rendered back as Arabic-Indic and every remaining bracket is
// pinned with left-to-right marks so RTL mirroring cannot flip it.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LRM is the left-to-right mark placed around bracket characters.
const LRM = '\u200e'

var (
	// footnoteMarker matches inline markers such as (3) or (12).
	footnoteMarker = regexp.MustCompile(`\(\d{1,2}\)`)

	// editorialNote matches bracketed runs of Arabic letters, digits,
	// slashes and whitespace, e.g. [تحرير 12].
	editorialNote = regexp.MustCompile(`\[[\x{0600}-\x{06FF}\s\d/]+\]`)

	repeatedSpaces = regexp.MustCompile(` {2,}`)
)

// droppedElements are removed with their whole subtree.
var droppedElements = map[atom.Atom]bool{
	atom.Ol: true,
	atom.Li: true,
}

// Text applies the text-node rewrite to a single string.
func Text(s string) string {
	s = Digits(s, Western)

	stripped := footnoteMarker.ReplaceAllString(s, "")
	stripped = editorialNote.ReplaceAllString(stripped, "")
	if stripped != s {
		stripped = repeatedSpaces.ReplaceAllString(stripped, " ")
	}

	return pinBrackets(Digits(stripped, ArabicIndic))
}

func pinBrackets(s string) string {
	if !strings.ContainsAny(s, "()[]{}") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '(', ')', '[', ']', '{', '}':
			b.WriteRune(LRM)
			b.WriteRune(r)
			b.WriteRune(LRM)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Markup parses an HTML fragment, drops footnote lists and rewrites every
// text node with Text. Tags and attributes are kept as they are.
func Markup(markup string) (string, error) {
	if strings.TrimSpace(markup) == "" {
		return "", nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	var b strings.Builder
	for _, n := range nodes {
		if n.Type == html.ElementNode && droppedElements[n.DataAtom] {
			continue
		}
		rewrite(n)
		if err := html.Render(&b, n); err != nil {
			return "", fmt.Errorf("failed to render markup: %w", err)
		}
	}
	return b.String(), nil
}

func rewrite(n *html.Node) {
	if n.Type == html.TextNode {
		n.Data = Text(n.Data)
		return
	}

	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && droppedElements[c.DataAtom] {
			n.RemoveChild(c)
			continue
		}
		rewrite(c)
	}
}
