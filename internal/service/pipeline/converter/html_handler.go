package converter

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"
)

// htmlHandler extracts visible text from HTML documents
type htmlHandler struct{}

// NewHTMLHandler creates the HTML handler
func NewHTMLHandler() TextHandler {
	return &htmlHandler{}
}

func (h *htmlHandler) MediaTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (h *htmlHandler) ToText(ctx context.Context, data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	collectText(doc, &b)

	// Collapse runs of whitespace left by markup
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		// Skip non-content elements
		switch n.Data {
		case "script", "style", "head":
			return
		}
	}

	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
