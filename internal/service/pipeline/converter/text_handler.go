package converter

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"
)

// textHandler passes plain text through, normalizing line endings and
// dropping invalid UTF-8.
type textHandler struct{}

// NewTextHandler creates the plain-text handler
func NewTextHandler() TextHandler {
	return &textHandler{}
}

func (h *textHandler) MediaTypes() []string {
	return []string{"text/plain", "text/csv", "application/json"}
}

func (h *textHandler) ToText(ctx context.Context, data []byte) (string, error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte(""))
	}

	return strings.TrimSpace(string(data)), nil
}
