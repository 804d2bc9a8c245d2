package export

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// paragraphAtoms become one paragraph each, inline content flattened.
var paragraphAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

// containerAtoms are walked into; loose text beside them becomes its own
// paragraph.
var containerAtoms = map[atom.Atom]bool{
	atom.Div: true, atom.Ul: true, atom.Ol: true, atom.Blockquote: true,
	atom.Section: true, atom.Article: true, atom.Table: true, atom.Tbody: true,
	atom.Thead: true, atom.Tr: true, atom.Td: true, atom.Th: true,
}

// Paragraphs flattens page markup into paragraph texts in document order.
func Paragraphs(markup string) ([]string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page markup: %w", err)
	}

	var out []string
	var loose strings.Builder
	flush := func() {
		if s := collapse(loose.String()); s != "" {
			out = append(out, s)
		}
		loose.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case paragraphAtoms[n.DataAtom]:
				flush()
				if s := collapse(textOf(n)); s != "" {
					out = append(out, s)
				}
				return
			case containerAtoms[n.DataAtom]:
				flush()
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				flush()
				return
			}
		}
		loose.WriteString(textOf(n))
	}
	for _, n := range nodes {
		walk(n)
	}
	flush()
	return out, nil
}

// textOf concatenates the text under n. Line breaks become spaces.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Br:
				sb.WriteByte(' ')
				return
			case atom.Script, atom.Style:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
