package extract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

func extractHTML(content []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	collectText(root, &sb)
	return strings.TrimSpace(sb.String()), nil
}

// collectText walks the parse tree appending text nodes, skipping script and
// style subtrees. Block-level elements contribute a newline so paragraphs
// stay separated in the output.
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if n.Type == html.ElementNode && isBlock(n.Data) && sb.Len() > 0 {
		sb.WriteByte('\n')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "section", "article":
		return true
	}
	return false
}
