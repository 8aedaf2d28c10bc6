// Package converter implements the content-conversion service: a registry
// of per-media-type handlers producing text, PDF, metadata and preview
// renditions. Conversion failures are per-format and recoverable; callers
// get ErrNoHandler for types nothing can process.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"sync"

	"contentvault/internal/domain"
	"contentvault/internal/domain/services"
)

// TextHandler extracts plain text from one family of media types
type TextHandler interface {
	// MediaTypes lists the exact media types this handler accepts
	MediaTypes() []string
	// ToText extracts plain text from the content
	ToText(ctx context.Context, data []byte) (string, error)
}

// Service routes conversion requests by media type.
//
// Thread-safe for concurrent access.
type Service struct {
	mu       sync.RWMutex
	handlers map[string]TextHandler // key: media type (e.g. "text/html")
	preview  *previewRenderer
	logger   *slog.Logger
}

// NewService creates a conversion service with standard handlers
// pre-registered.
func NewService(logger *slog.Logger) *Service {
	s := &Service{
		handlers: make(map[string]TextHandler),
		preview:  newPreviewRenderer(),
		logger:   logger,
	}

	s.Register(NewTextHandler())
	s.Register(NewMarkdownHandler())
	s.Register(NewHTMLHandler())

	return s
}

var _ services.Converter = (*Service)(nil)

// Register adds a handler for its declared media types
func (s *Service) Register(h TextHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mt := range h.MediaTypes() {
		s.handlers[strings.ToLower(mt)] = h
	}
}

// handlerFor retrieves a handler for the given content type, ignoring
// parameters like charset. Returns nil if none is registered.
func (s *Service) handlerFor(contentType string) TextHandler {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[mediaType]
}

// ToText extracts plain text from the content
func (s *Service) ToText(ctx context.Context, digest string, data []byte, contentType string) (string, error) {
	h := s.handlerFor(contentType)
	if h == nil {
		return "", fmt.Errorf("%s: %w", contentType, domain.ErrNoHandler)
	}

	text, err := h.ToText(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", contentType, err)
	}

	return text, nil
}

// ToPDF produces a PDF rendition. Identity for content that is already
// PDF; everything else goes through text extraction and a text-to-PDF
// rendering pass.
func (s *Service) ToPDF(ctx context.Context, digest string, data []byte, contentType string) ([]byte, error) {
	if isPDF(contentType) {
		return data, nil
	}

	text, err := s.ToText(ctx, digest, data, contentType)
	if err != nil {
		return nil, err
	}

	pdf, err := renderTextPDF(text)
	if err != nil {
		return nil, fmt.Errorf("render pdf for %s: %w", contentType, err)
	}

	return pdf, nil
}

// Metadata extracts structured metadata from the content
func (s *Service) Metadata(ctx context.Context, digest string, data []byte, contentType string) (map[string]interface{}, error) {
	meta := map[string]interface{}{
		"content_type":   contentType,
		"content_length": len(data),
	}

	if isPDF(contentType) {
		meta["pages"] = countPDFPages(data)
		return meta, nil
	}

	text, err := s.ToText(ctx, digest, data, contentType)
	if err != nil {
		// Metadata stays generic for formats without a text handler
		return meta, nil
	}

	meta["words"] = countWords(text)
	meta["lines"] = strings.Count(text, "\n") + 1

	return meta, nil
}

// ToImage renders a preview page image fitted to maxWidth x maxHeight.
// Images are resized directly; text formats get a rendered first page.
func (s *Service) ToImage(ctx context.Context, digest string, data []byte, contentType string, maxWidth, maxHeight int) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	if strings.HasPrefix(mediaType, "image/") {
		return s.preview.resizeImage(data, maxWidth, maxHeight)
	}

	text, textErr := s.ToText(ctx, digest, data, contentType)
	if textErr != nil {
		return nil, fmt.Errorf("preview for %s: %w", contentType, domain.ErrNoHandler)
	}

	return s.preview.renderTextPage(text, maxWidth, maxHeight)
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "application/pdf"
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
