// Package pipeline implements the asynchronous content-processing stages
// that run after an upload commits: antivirus scan, PDF conversion, text
// extraction, metadata and language detection, and preview generation.
//
// Stages are independent background tasks. Each stage commits its own
// partial result; a failure in one never rolls back another's success,
// and a stage whose document was deleted in the meantime exits quietly.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"contentvault/internal/config"
	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
	"contentvault/internal/domain/services"
	"contentvault/internal/tasks"
)

// Task names registered on the queue
const (
	TaskScan     = "content.scan"
	TaskPDF      = "content.pdf"
	TaskText     = "content.text"
	TaskMetadata = "content.metadata"
	TaskPreview  = "content.preview"
)

// Service drives the pipeline stages and implements services.Pipeline.
type Service struct {
	docRepo     repositories.DocumentRepository
	contentRepo repositories.ContentRepository
	converter   services.Converter
	scanner     services.Scanner // nil when no antivirus daemon is configured
	queue       services.TaskQueue
	cfg         config.PipelineConfig
	logger      *slog.Logger
}

// New creates the pipeline service. scanner may be nil.
func New(
	docRepo repositories.DocumentRepository,
	contentRepo repositories.ContentRepository,
	converter services.Converter,
	scanner services.Scanner,
	queue services.TaskQueue,
	cfg config.PipelineConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		docRepo:     docRepo,
		contentRepo: contentRepo,
		converter:   converter,
		scanner:     scanner,
		queue:       queue,
		cfg:         cfg,
		logger:      logger,
	}
}

// Register wires the stage handlers onto the task queue
func (p *Service) Register(q *tasks.Queue) {
	q.Register(TaskScan, p.handleScan)
	q.Register(TaskPDF, p.handlePDF)
	q.Register(TaskText, p.handleText)
	q.Register(TaskMetadata, p.handleMetadata)
	q.Register(TaskPreview, p.handlePreview)
}

var _ services.Pipeline = (*Service)(nil)

// Dispatch enqueues processing for a freshly uploaded document. The scan
// task gates the remaining stages.
func (p *Service) Dispatch(ctx context.Context, docID string) {
	if _, err := p.queue.Enqueue(ctx, TaskScan, map[string]string{"document_id": docID}); err != nil {
		p.logger.Error("failed to dispatch pipeline", "document_id", docID, "error", err)
	}
}

// ScanAllUnscanned enqueues antivirus scans for every document lacking a
// verdict. Returns the number of scans enqueued.
//
// Without a scanner no verdict can ever be recorded, so the sweep would
// re-enqueue the same documents (and their conversion stages) on every
// tick; it is a no-op in that case.
func (p *Service) ScanAllUnscanned(ctx context.Context) (int, error) {
	if p.scanner == nil {
		p.logger.Debug("no antivirus scanner configured, skipping sweep")
		return 0, nil
	}

	ids, err := p.docRepo.ListUnscannedIDs(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range ids {
		if _, err := p.queue.Enqueue(ctx, TaskScan, map[string]string{"document_id": id}); err != nil {
			p.logger.Warn("failed to enqueue scan", "document_id", id, "error", err)
			continue
		}
		enqueued++
	}

	p.logger.Info("antivirus sweep scheduled", "documents", enqueued)
	return enqueued, nil
}

// load fetches the stage's document and its content blob. A deleted
// document or missing blob comes back as (nil, nil, "") - the stage
// treats that as a no-op.
func (p *Service) load(ctx context.Context, args map[string]string) (*models.Document, []byte, string, error) {
	doc, err := p.docRepo.GetByID(ctx, args["document_id"])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, "", nil
		}
		return nil, nil, "", err
	}
	if doc.ContentDigest == nil {
		return nil, nil, "", nil
	}

	data, contentType, err := p.contentRepo.Get(ctx, *doc.ContentDigest)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, "", nil
		}
		return nil, nil, "", err
	}

	return doc, data, contentType, nil
}

// handleScan runs the antivirus stage. Infected content stops the
// pipeline; an absent scanner or an indeterminate verdict lets the
// remaining stages run.
func (p *Service) handleScan(ctx context.Context, args map[string]string) error {
	doc, data, _, err := p.load(ctx, args)
	if err != nil || doc == nil {
		return err
	}

	if p.scanner != nil {
		verdict, scanErr := p.scanner.Scan(ctx, data)
		if scanErr != nil {
			p.logger.Warn("antivirus scan failed", "document_id", doc.ID, "error", scanErr)
			verdict = services.VerdictIndeterminate
		}

		status := models.ScanStatusUnknown
		switch verdict {
		case services.VerdictClean:
			status = models.ScanStatusOK
		case services.VerdictInfected:
			status = models.ScanStatusInfected
		}

		if err := p.docRepo.UpdateScanStatus(ctx, doc.ID, status); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}

		if status == models.ScanStatusInfected {
			p.logger.Warn("document quarantined, skipping conversion stages", "document_id", doc.ID)
			return nil
		}
	}

	for _, task := range []string{TaskPDF, TaskText, TaskMetadata, TaskPreview} {
		if _, err := p.queue.Enqueue(ctx, task, args); err != nil {
			p.logger.Warn("failed to enqueue stage", "task", task, "document_id", doc.ID, "error", err)
		}
	}

	return nil
}

// handlePDF runs the PDF-conversion stage
func (p *Service) handlePDF(ctx context.Context, args map[string]string) error {
	doc, data, contentType, err := p.load(ctx, args)
	if err != nil || doc == nil {
		return err
	}

	pdf, err := p.converter.ToPDF(ctx, *doc.ContentDigest, data, contentType)
	if err != nil {
		// Conversion failures leave the field empty; the document stays usable
		p.logger.Warn("pdf conversion failed", "document_id", doc.ID, "error", err)
		return nil
	}

	if err := p.docRepo.UpdatePDF(ctx, doc.ID, pdf); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	p.logger.Debug("pdf rendition stored", "document_id", doc.ID, "bytes", len(pdf))
	return nil
}

// handleText runs the text-extraction stage
func (p *Service) handleText(ctx context.Context, args map[string]string) error {
	doc, data, contentType, err := p.load(ctx, args)
	if err != nil || doc == nil {
		return err
	}

	text, err := p.converter.ToText(ctx, *doc.ContentDigest, data, contentType)
	if err != nil {
		p.logger.Warn("text extraction failed", "document_id", doc.ID, "error", err)
		return nil
	}

	if err := p.docRepo.UpdateText(ctx, doc.ID, text); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	p.logger.Debug("text extracted", "document_id", doc.ID, "chars", len(text))
	return nil
}

// handleMetadata runs the metadata + language-detection stage
func (p *Service) handleMetadata(ctx context.Context, args map[string]string) error {
	doc, data, contentType, err := p.load(ctx, args)
	if err != nil || doc == nil {
		return err
	}

	meta, err := p.converter.Metadata(ctx, *doc.ContentDigest, data, contentType)
	if err != nil {
		p.logger.Warn("metadata extraction failed", "document_id", doc.ID, "error", err)
	} else if len(meta) > 0 {
		if err := p.docRepo.UpdateMetadata(ctx, doc.ID, meta); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
	}

	// Language detection runs on extracted text when available
	text := ""
	if doc.TextContent != nil {
		text = *doc.TextContent
	}
	if text == "" {
		if extracted, textErr := p.converter.ToText(ctx, *doc.ContentDigest, data, contentType); textErr == nil {
			text = extracted
		}
	}
	if text == "" {
		return nil
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		p.logger.Debug("language detection unreliable", "document_id", doc.ID)
		return nil
	}

	lang := whatlanggo.LangToString(info.Lang)
	if err := p.docRepo.UpdateLanguage(ctx, doc.ID, lang); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	p.logger.Debug("language detected", "document_id", doc.ID, "language", lang)
	return nil
}

// handlePreview runs the preview-generation stage. Failures surface as
// "preview unavailable", never as a blocked document.
func (p *Service) handlePreview(ctx context.Context, args map[string]string) error {
	doc, data, contentType, err := p.load(ctx, args)
	if err != nil || doc == nil {
		return err
	}

	img, err := p.converter.ToImage(ctx, *doc.ContentDigest, data, contentType,
		p.cfg.PreviewWidth, p.cfg.PreviewHeight)
	if err != nil {
		p.logger.Debug("preview unavailable", "document_id", doc.ID, "error", err)
		return nil
	}

	if err := p.docRepo.UpdatePreview(ctx, doc.ID, img); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	return nil
}
