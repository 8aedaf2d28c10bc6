package converter

import (
	"context"
	"strings"
	"unicode"
)

// markdownHandler strips markdown syntax down to readable plain text
type markdownHandler struct{}

// NewMarkdownHandler creates the markdown handler
func NewMarkdownHandler() TextHandler {
	return &markdownHandler{}
}

func (h *markdownHandler) MediaTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (h *markdownHandler) ToText(ctx context.Context, data []byte) (string, error) {
	return strings.TrimSpace(cleanMarkdown(string(data))), nil
}

// cleanMarkdown removes markdown syntax from text
func cleanMarkdown(markdown string) string {
	text := removeCodeBlocks(markdown)

	// Remove inline code and emphasis markers
	text = strings.ReplaceAll(text, "`", "")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "*", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "_", "")
	text = strings.ReplaceAll(text, "~~", "")

	// Remove heading markers
	text = strings.ReplaceAll(text, "#", "")

	// Remove list markers
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			line = strings.TrimPrefix(line, "- ")
		}
		// Remove numbered list markers (e.g., "1. ", "2. ")
		if len(line) > 2 && unicode.IsDigit(rune(line[0])) && line[1] == '.' {
			line = strings.TrimSpace(line[2:])
		}
		// Remove blockquote markers
		line = strings.TrimPrefix(line, "> ")
		cleaned = append(cleaned, line)
	}
	text = strings.Join(cleaned, "\n")

	// Remove horizontal rules
	text = strings.ReplaceAll(text, "---", "")

	return text
}

// removeCodeBlocks removes ```...``` code blocks from text
func removeCodeBlocks(text string) string {
	for {
		start := strings.Index(text, "```")
		if start == -1 {
			break
		}
		end := strings.Index(text[start+3:], "```")
		if end == -1 {
			break
		}
		text = text[:start] + text[start+end+6:]
	}
	return text
}
