package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentvault/internal/config"
	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDocs is a minimal in-memory DocumentRepository for pipeline stages
type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]*models.Document)}
}

func (f *fakeDocs) with(id string, fn func(d *models.Document)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(d)
	return nil
}

func (f *fakeDocs) Create(ctx context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocs) GetByID(ctx context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocs) GetByTitleAndFolder(ctx context.Context, title, folderID string) (*models.Document, error) {
	return nil, nil
}
func (f *fakeDocs) Update(ctx context.Context, doc *models.Document) error { return nil }
func (f *fakeDocs) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}
func (f *fakeDocs) ListByFolder(ctx context.Context, folderID string) ([]models.Document, error) {
	return nil, nil
}
func (f *fakeDocs) SetContent(ctx context.Context, id, digest, contentType string, length int64) error {
	return f.with(id, func(d *models.Document) {
		d.ContentDigest = &digest
		d.ContentType = contentType
		d.ContentLength = length
	})
}
func (f *fakeDocs) UpdatePDF(ctx context.Context, id string, pdf []byte) error {
	return f.with(id, func(d *models.Document) { d.PDF = pdf })
}
func (f *fakeDocs) UpdateText(ctx context.Context, id, text string) error {
	return f.with(id, func(d *models.Document) { d.TextContent = &text })
}
func (f *fakeDocs) UpdatePreview(ctx context.Context, id string, preview []byte) error {
	return f.with(id, func(d *models.Document) { d.Preview = preview })
}
func (f *fakeDocs) UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}) error {
	return f.with(id, func(d *models.Document) { d.ExtraMetadata = metadata })
}
func (f *fakeDocs) UpdateLanguage(ctx context.Context, id, language string) error {
	return f.with(id, func(d *models.Document) { d.Language = language })
}
func (f *fakeDocs) UpdateScanStatus(ctx context.Context, id string, status models.ScanStatus) error {
	return f.with(id, func(d *models.Document) {
		d.Scanned = true
		d.ScanStatus = status
	})
}
func (f *fakeDocs) SetLock(ctx context.Context, id string, lock *models.Lock) error {
	return f.with(id, func(d *models.Document) { d.Lock = lock })
}
func (f *fakeDocs) ListUnscannedIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.docs {
		if !d.Scanned && d.ContentDigest != nil {
			out = append(out, d.ID)
		}
	}
	return out, nil
}

type fakeContents struct {
	data map[string][]byte
	typ  map[string]string
}

func (f *fakeContents) Put(ctx context.Context, digest string, data []byte, contentType string) error {
	f.data[digest] = data
	f.typ[digest] = contentType
	return nil
}

func (f *fakeContents) Get(ctx context.Context, digest string) ([]byte, string, error) {
	d, ok := f.data[digest]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return d, f.typ[digest], nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []string
}

func (q *fakeQueue) Enqueue(ctx context.Context, task string, args map[string]string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return "id", nil
}

type fakeConverter struct {
	pdfErr error
}

func (c *fakeConverter) ToPDF(ctx context.Context, digest string, data []byte, contentType string) ([]byte, error) {
	if c.pdfErr != nil {
		return nil, c.pdfErr
	}
	return []byte("%PDF-fake"), nil
}

func (c *fakeConverter) ToText(ctx context.Context, digest string, data []byte, contentType string) (string, error) {
	return string(data), nil
}

func (c *fakeConverter) Metadata(ctx context.Context, digest string, data []byte, contentType string) (map[string]interface{}, error) {
	return map[string]interface{}{"content_type": contentType}, nil
}

func (c *fakeConverter) ToImage(ctx context.Context, digest string, data []byte, contentType string, w, h int) ([]byte, error) {
	return []byte("png"), nil
}

type fakeScanner struct {
	verdict services.ScanVerdict
	err     error
}

func (s *fakeScanner) Scan(ctx context.Context, data []byte) (services.ScanVerdict, error) {
	return s.verdict, s.err
}

type fixture struct {
	docs     *fakeDocs
	contents *fakeContents
	queue    *fakeQueue
	conv     *fakeConverter
	svc      *Service
}

func newFixture(scanner services.Scanner) *fixture {
	f := &fixture{
		docs:     newFakeDocs(),
		contents: &fakeContents{data: map[string][]byte{}, typ: map[string]string{}},
		queue:    &fakeQueue{},
		conv:     &fakeConverter{},
	}
	cfg := config.PipelineConfig{PreviewWidth: 320, PreviewHeight: 450}
	f.svc = New(f.docs, f.contents, f.conv, scanner, f.queue, cfg, testLogger())
	return f
}

func (f *fixture) addDoc(t *testing.T, id, text string) map[string]string {
	t.Helper()
	digest := "digest-" + id
	require.NoError(t, f.docs.Create(context.Background(), &models.Document{
		ID:            id,
		Title:         id + ".txt",
		ContentDigest: &digest,
		ContentType:   "text/plain",
	}))
	require.NoError(t, f.contents.Put(context.Background(), digest, []byte(text), "text/plain"))
	return map[string]string{"document_id": id}
}

func TestDispatch_EnqueuesScanFirst(t *testing.T) {
	f := newFixture(nil)

	f.svc.Dispatch(context.Background(), "d1")

	assert.Equal(t, []string{TaskScan}, f.queue.tasks)
}

func TestHandleScan_CleanFansOutStages(t *testing.T) {
	f := newFixture(&fakeScanner{verdict: services.VerdictClean})
	args := f.addDoc(t, "d1", "clean content")

	require.NoError(t, f.svc.handleScan(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, doc.Scanned)
	assert.Equal(t, models.ScanStatusOK, doc.ScanStatus)

	assert.ElementsMatch(t, []string{TaskPDF, TaskText, TaskMetadata, TaskPreview}, f.queue.tasks)
}

func TestHandleScan_InfectedStopsPipeline(t *testing.T) {
	f := newFixture(&fakeScanner{verdict: services.VerdictInfected})
	args := f.addDoc(t, "d1", "evil content")

	require.NoError(t, f.svc.handleScan(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusInfected, doc.ScanStatus)
	assert.False(t, doc.Safe())

	assert.Empty(t, f.queue.tasks, "conversion stages must not run on infected content")
}

func TestHandleScan_ScannerErrorIsIndeterminate(t *testing.T) {
	f := newFixture(&fakeScanner{err: errors.New("daemon down")})
	args := f.addDoc(t, "d1", "content")

	require.NoError(t, f.svc.handleScan(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusUnknown, doc.ScanStatus)
	assert.True(t, doc.Safe(), "indeterminate is not infected")

	// An unreachable scanner never blocks the document
	assert.Len(t, f.queue.tasks, 4)
}

func TestHandleScan_NoScannerSkipsVerdict(t *testing.T) {
	f := newFixture(nil)
	args := f.addDoc(t, "d1", "content")

	require.NoError(t, f.svc.handleScan(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, doc.Scanned, "no scanner means no verdict, not a fake one")
	assert.Len(t, f.queue.tasks, 4)
}

func TestHandlePDF_StoresRendition(t *testing.T) {
	f := newFixture(nil)
	args := f.addDoc(t, "d1", "render me")

	require.NoError(t, f.svc.handlePDF(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.PDF)
}

func TestHandlePDF_ConversionFailureIsNotFatal(t *testing.T) {
	f := newFixture(nil)
	f.conv.pdfErr = errors.New("unsupported")
	args := f.addDoc(t, "d1", "binary blob")

	require.NoError(t, f.svc.handlePDF(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Empty(t, doc.PDF, "failed conversion leaves the field empty")
}

func TestHandleText_Extracts(t *testing.T) {
	f := newFixture(nil)
	args := f.addDoc(t, "d1", "some body text")

	require.NoError(t, f.svc.handleText(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	require.NotNil(t, doc.TextContent)
	assert.Equal(t, "some body text", *doc.TextContent)
}

func TestHandleMetadata_DetectsLanguage(t *testing.T) {
	f := newFixture(nil)
	args := f.addDoc(t, "d1",
		"The quick brown fox jumps over the lazy dog and keeps running through the quiet English countryside.")

	require.NoError(t, f.svc.handleMetadata(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.ExtraMetadata["content_type"])
	assert.NotEmpty(t, doc.Language)
}

func TestHandlePreview_Stores(t *testing.T) {
	f := newFixture(nil)
	args := f.addDoc(t, "d1", "preview text")

	require.NoError(t, f.svc.handlePreview(context.Background(), args))

	doc, err := f.docs.GetByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Preview)
}

func TestStages_DeletedDocumentIsNoop(t *testing.T) {
	f := newFixture(nil)
	args := map[string]string{"document_id": "gone"}

	require.NoError(t, f.svc.handleScan(context.Background(), args))
	require.NoError(t, f.svc.handlePDF(context.Background(), args))
	require.NoError(t, f.svc.handleText(context.Background(), args))
	require.NoError(t, f.svc.handleMetadata(context.Background(), args))
	require.NoError(t, f.svc.handlePreview(context.Background(), args))

	assert.Empty(t, f.queue.tasks)
}

func TestScanAllUnscanned(t *testing.T) {
	f := newFixture(&fakeScanner{verdict: services.VerdictClean})
	f.addDoc(t, "d1", "one")
	f.addDoc(t, "d2", "two")

	// d2 already has a verdict
	require.NoError(t, f.docs.UpdateScanStatus(context.Background(), "d2", models.ScanStatusOK))

	n, err := f.svc.ScanAllUnscanned(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{TaskScan}, f.queue.tasks)
}

func TestScanAllUnscanned_NoScannerIsNoop(t *testing.T) {
	f := newFixture(nil)
	f.addDoc(t, "d1", "one")
	f.addDoc(t, "d2", "two")

	// Without a scanner no verdict can ever land, so a sweep would
	// re-enqueue the same documents on every tick
	n, err := f.svc.ScanAllUnscanned(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.queue.tasks)
}
