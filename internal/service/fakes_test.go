package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentvault/internal/domain"
	"contentvault/internal/domain/models"
	"contentvault/internal/domain/repositories"
)

// store is the shared in-memory backing for the fake repositories. It
// enforces the same invariants the database schema does: sibling-title
// uniqueness and cascade on folder delete.
type store struct {
	mu      sync.Mutex
	folders map[string]*models.Folder
	docs    map[string]*models.Document
	roles   []models.RoleAssignment
	members map[string][]string
	blobs   map[string]blob
}

type blob struct {
	data        []byte
	contentType string
}

func newStore() *store {
	return &store{
		folders: make(map[string]*models.Folder),
		docs:    make(map[string]*models.Document),
		members: make(map[string][]string),
		blobs:   make(map[string]blob),
	}
}

func copyFolder(f *models.Folder) *models.Folder {
	c := *f
	return &c
}

func copyDoc(d *models.Document) *models.Document {
	c := *d
	if d.Lock != nil {
		l := *d.Lock
		c.Lock = &l
	}
	return &c
}

// --- folder repository ---

type fakeFolderRepo struct{ st *store }

func (r *fakeFolderRepo) Create(ctx context.Context, folder *models.Folder) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	for _, f := range r.st.folders {
		if sameParent(f.ParentID, folder.ParentID) && f.Title == folder.Title {
			return domain.ErrConflict
		}
	}
	r.st.folders[folder.ID] = copyFolder(folder)
	return nil
}

func (r *fakeFolderRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	f, ok := r.st.folders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyFolder(f), nil
}

func (r *fakeFolderRepo) GetRoot(ctx context.Context) (*models.Folder, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, f := range r.st.folders {
		if f.ParentID == nil {
			return copyFolder(f), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeFolderRepo) EnsureRoot(ctx context.Context) (*models.Folder, error) {
	if root, err := r.GetRoot(ctx); err == nil {
		return root, nil
	}
	root := &models.Folder{
		ID:              uuid.NewString(),
		Title:           "",
		InheritSecurity: true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	r.st.mu.Lock()
	r.st.folders[root.ID] = copyFolder(root)
	r.st.mu.Unlock()
	return root, nil
}

func (r *fakeFolderRepo) GetByTitleAndParent(ctx context.Context, title string, parentID *string) (*models.Folder, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, f := range r.st.folders {
		if sameParent(f.ParentID, parentID) && f.Title == title {
			return copyFolder(f), nil
		}
	}
	return nil, nil
}

func (r *fakeFolderRepo) Update(ctx context.Context, folder *models.Folder) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.folders[folder.ID]; !ok {
		return domain.ErrNotFound
	}
	for _, f := range r.st.folders {
		if f.ID != folder.ID && sameParent(f.ParentID, folder.ParentID) && f.Title == folder.Title {
			return domain.ErrConflict
		}
	}
	r.st.folders[folder.ID] = copyFolder(folder)
	return nil
}

func (r *fakeFolderRepo) Delete(ctx context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.folders[id]; !ok {
		return domain.ErrNotFound
	}
	ids := r.subtreeLocked(id)
	for _, nid := range ids {
		delete(r.st.folders, nid)
		delete(r.st.docs, nid)
	}
	return nil
}

func (r *fakeFolderRepo) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []models.Folder
	for _, f := range r.st.folders {
		if f.ParentID != nil && *f.ParentID == parentID {
			out = append(out, *copyFolder(f))
		}
	}
	return out, nil
}

func (r *fakeFolderRepo) GetPath(ctx context.Context, folderID string) (string, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	f, ok := r.st.folders[folderID]
	if !ok {
		return "", domain.ErrNotFound
	}
	path := ""
	for f.ParentID != nil {
		path = "/" + f.Title + path
		f = r.st.folders[*f.ParentID]
	}
	return path, nil
}

func (r *fakeFolderRepo) SubtreeIDs(ctx context.Context, folderID string) ([]string, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.folders[folderID]; !ok {
		return nil, domain.ErrNotFound
	}
	return r.subtreeLocked(folderID), nil
}

func (r *fakeFolderRepo) subtreeLocked(folderID string) []string {
	ids := []string{folderID}
	for i := 0; i < len(ids); i++ {
		cur := ids[i]
		for _, f := range r.st.folders {
			if f.ParentID != nil && *f.ParentID == cur {
				ids = append(ids, f.ID)
			}
		}
		for _, d := range r.st.docs {
			if d.FolderID == cur {
				ids = append(ids, d.ID)
			}
		}
	}
	return ids
}

func (r *fakeFolderRepo) DocumentCount(ctx context.Context, folderID string) (int, error) {
	ids, err := r.SubtreeIDs(ctx, folderID)
	if err != nil {
		return 0, err
	}
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := r.st.docs[id]; ok {
			n++
		}
	}
	return n, nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// --- document repository ---

type fakeDocRepo struct{ st *store }

func (r *fakeDocRepo) Create(ctx context.Context, doc *models.Document) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	for _, d := range r.st.docs {
		if d.FolderID == doc.FolderID && d.Title == doc.Title {
			return domain.ErrConflict
		}
	}
	r.st.docs[doc.ID] = copyDoc(doc)
	return nil
}

func (r *fakeDocRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	d, ok := r.st.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyDoc(d), nil
}

func (r *fakeDocRepo) GetByTitleAndFolder(ctx context.Context, title, folderID string) (*models.Document, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, d := range r.st.docs {
		if d.FolderID == folderID && d.Title == title {
			return copyDoc(d), nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) Update(ctx context.Context, doc *models.Document) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	cur, ok := r.st.docs[doc.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, d := range r.st.docs {
		if d.ID != doc.ID && d.FolderID == doc.FolderID && d.Title == doc.Title {
			return domain.ErrConflict
		}
	}
	cur.FolderID = doc.FolderID
	cur.Title = doc.Title
	cur.Description = doc.Description
	cur.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r *fakeDocRepo) Delete(ctx context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.st.docs, id)
	return nil
}

func (r *fakeDocRepo) ListByFolder(ctx context.Context, folderID string) ([]models.Document, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []models.Document
	for _, d := range r.st.docs {
		if d.FolderID == folderID {
			out = append(out, *copyDoc(d))
		}
	}
	return out, nil
}

func (r *fakeDocRepo) SetContent(ctx context.Context, id, digest, contentType string, length int64) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	d, ok := r.st.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.ContentDigest = &digest
	d.ContentType = contentType
	d.ContentLength = length
	d.PDF = nil
	d.TextContent = nil
	d.Preview = nil
	d.ExtraMetadata = nil
	d.Language = ""
	d.Lock = nil
	d.Scanned = false
	d.ScanStatus = models.ScanStatusUnknown
	d.UpdatedAt = time.Now()
	return nil
}

func (r *fakeDocRepo) withDoc(id string, fn func(d *models.Document)) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	d, ok := r.st.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(d)
	return nil
}

func (r *fakeDocRepo) UpdatePDF(ctx context.Context, id string, pdf []byte) error {
	return r.withDoc(id, func(d *models.Document) { d.PDF = pdf })
}

func (r *fakeDocRepo) UpdateText(ctx context.Context, id, text string) error {
	return r.withDoc(id, func(d *models.Document) { d.TextContent = &text })
}

func (r *fakeDocRepo) UpdatePreview(ctx context.Context, id string, preview []byte) error {
	return r.withDoc(id, func(d *models.Document) { d.Preview = preview })
}

func (r *fakeDocRepo) UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}) error {
	return r.withDoc(id, func(d *models.Document) { d.ExtraMetadata = metadata })
}

func (r *fakeDocRepo) UpdateLanguage(ctx context.Context, id, language string) error {
	return r.withDoc(id, func(d *models.Document) { d.Language = language })
}

func (r *fakeDocRepo) UpdateScanStatus(ctx context.Context, id string, status models.ScanStatus) error {
	return r.withDoc(id, func(d *models.Document) {
		d.Scanned = true
		d.ScanStatus = status
	})
}

func (r *fakeDocRepo) SetLock(ctx context.Context, id string, lock *models.Lock) error {
	return r.withDoc(id, func(d *models.Document) {
		if lock == nil {
			d.Lock = nil
			return
		}
		l := *lock
		d.Lock = &l
	})
}

func (r *fakeDocRepo) ListUnscannedIDs(ctx context.Context) ([]string, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []string
	for _, d := range r.st.docs {
		if !d.Scanned && d.ContentDigest != nil {
			out = append(out, d.ID)
		}
	}
	return out, nil
}

// --- role repository ---

type fakeRoleRepo struct{ st *store }

func (r *fakeRoleRepo) Grant(ctx context.Context, a *models.RoleAssignment) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, existing := range r.st.roles {
		if existing.NodeID == a.NodeID && existing.Principal == a.Principal && existing.Role == a.Role {
			return nil
		}
	}
	cp := *a
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	r.st.roles = append(r.st.roles, cp)
	return nil
}

func (r *fakeRoleRepo) Revoke(ctx context.Context, nodeID, principal string, role models.Role) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	kept := r.st.roles[:0]
	for _, a := range r.st.roles {
		if a.NodeID == nodeID && a.Principal == principal && a.Role == role {
			continue
		}
		kept = append(kept, a)
	}
	r.st.roles = kept
	return nil
}

func (r *fakeRoleRepo) ListByNode(ctx context.Context, nodeID string) ([]models.RoleAssignment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []models.RoleAssignment
	for _, a := range r.st.roles {
		if a.NodeID == nodeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) DeleteByNodes(ctx context.Context, nodeIDs []string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	doomed := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		doomed[id] = true
	}
	kept := r.st.roles[:0]
	for _, a := range r.st.roles {
		if !doomed[a.NodeID] {
			kept = append(kept, a)
		}
	}
	r.st.roles = kept
	return nil
}

func (r *fakeRoleRepo) GroupMembers(ctx context.Context, groupID string) ([]string, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return append([]string(nil), r.st.members[groupID]...), nil
}

func (r *fakeRoleRepo) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []string
	for group, users := range r.st.members {
		for _, u := range users {
			if u == userID {
				out = append(out, group)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRoleRepo) AddGroupMember(ctx context.Context, groupID, userID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, u := range r.st.members[groupID] {
		if u == userID {
			return nil
		}
	}
	r.st.members[groupID] = append(r.st.members[groupID], userID)
	return nil
}

func (r *fakeRoleRepo) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	users := r.st.members[groupID]
	kept := users[:0]
	for _, u := range users {
		if u != userID {
			kept = append(kept, u)
		}
	}
	r.st.members[groupID] = kept
	return nil
}

// --- content repository ---

type fakeContentRepo struct{ st *store }

func (r *fakeContentRepo) Put(ctx context.Context, digest string, data []byte, contentType string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.blobs[digest]; ok {
		return nil
	}
	r.st.blobs[digest] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (r *fakeContentRepo) Get(ctx context.Context, digest string) ([]byte, string, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	b, ok := r.st.blobs[digest]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return append([]byte(nil), b.data...), b.contentType, nil
}

// --- transaction manager ---

// fakeTxManager mirrors the real manager's hook semantics without a
// database: nested calls join, the outermost call fires after-commit
// hooks on success.
type fakeTxManager struct{}

func (m *fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if repositories.HasHooks(ctx) {
		return fn(ctx)
	}
	txCtx, hooks := repositories.SetHooks(ctx)
	if err := fn(txCtx); err != nil {
		return err
	}
	hooks.Fire(ctx)
	return nil
}

// --- collaborators ---

type fakeReindex struct {
	mu       sync.Mutex
	subtrees []string
	nodes    []string
	removed  []string
}

func (f *fakeReindex) ReindexSubtree(ctx context.Context, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtrees = append(f.subtrees, folderID)
	return nil
}

func (f *fakeReindex) ReindexNode(ctx context.Context, nodeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, nodeID)
}

func (f *fakeReindex) RemoveNodes(ctx context.Context, nodeIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, nodeIDs...)
}

type fakePipeline struct {
	mu         sync.Mutex
	dispatched []string
}

func (f *fakePipeline) Dispatch(ctx context.Context, docID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, docID)
}

func (f *fakePipeline) ScanAllUnscanned(ctx context.Context) (int, error) { return 0, nil }

type enqueued struct {
	task string
	args map[string]string
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []enqueued
}

func (q *fakeQueue) Enqueue(ctx context.Context, task string, args map[string]string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, enqueued{task: task, args: args})
	return uuid.NewString(), nil
}

type fakeIndexer struct {
	mu      sync.Mutex
	entries map[string]*models.IndexEntry
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{entries: make(map[string]*models.IndexEntry)}
}

func (f *fakeIndexer) AddOrUpdate(ctx context.Context, entry *models.IndexEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.entries[entry.NodeID] = &cp
	return nil
}

func (f *fakeIndexer) Remove(ctx context.Context, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, nodeID)
	return nil
}

func (f *fakeIndexer) Search(ctx context.Context, opts *models.SearchOptions) ([]models.SearchResult, error) {
	return nil, nil
}
