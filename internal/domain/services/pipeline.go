package services

import (
	"context"
)

// Converter is the content-conversion collaborator. Each method may fail
// with ErrNoHandler for unsupported formats or a conversion error; the
// pipeline recovers from both per-stage.
type Converter interface {
	ToPDF(ctx context.Context, digest string, data []byte, contentType string) ([]byte, error)
	ToText(ctx context.Context, digest string, data []byte, contentType string) (string, error)
	Metadata(ctx context.Context, digest string, data []byte, contentType string) (map[string]interface{}, error)
	// ToImage renders a preview page image fitted to maxWidth x maxHeight.
	ToImage(ctx context.Context, digest string, data []byte, contentType string, maxWidth, maxHeight int) ([]byte, error)
}

// ScanVerdict is the antivirus scanner outcome
type ScanVerdict int

const (
	VerdictClean ScanVerdict = iota
	VerdictInfected
	VerdictIndeterminate
)

// Scanner is the optional antivirus collaborator
type Scanner interface {
	Scan(ctx context.Context, data []byte) (ScanVerdict, error)
}

// Pipeline drives the asynchronous per-upload processing stages.
type Pipeline interface {
	// Dispatch enqueues processing for a freshly uploaded document. Called
	// from an after-commit hook.
	Dispatch(ctx context.Context, docID string)

	// ScanAllUnscanned enqueues antivirus scans for every document
	// lacking a verdict. Administrative/scheduled entry point.
	ScanAllUnscanned(ctx context.Context) (int, error)
}
