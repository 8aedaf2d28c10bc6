package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentvault/internal/domain/models"
)

func TestReindexSubtree_FansOutPerNode(t *testing.T) {
	st := newStore()
	folders := &fakeFolderRepo{st: st}
	docs := &fakeDocRepo{st: st}
	queue := &fakeQueue{}
	ctx := context.Background()

	root, err := folders.EnsureRoot(ctx)
	require.NoError(t, err)
	a := &models.Folder{ParentID: &root.ID, Title: "a", InheritSecurity: true}
	require.NoError(t, folders.Create(ctx, a))
	d := &models.Document{FolderID: a.ID, Title: "x.txt"}
	require.NoError(t, docs.Create(ctx, d))

	sched := NewReindexScheduler(folders, queue, testLogger())
	require.NoError(t, sched.ReindexSubtree(ctx, a.ID))

	var ids []string
	for _, e := range queue.tasks {
		assert.Equal(t, TaskIndexUpdate, e.task)
		ids = append(ids, e.args["node_id"])
	}
	assert.ElementsMatch(t, []string{a.ID, d.ID}, ids)
}

func TestReindexSubtree_MissingFolderIsNoop(t *testing.T) {
	st := newStore()
	queue := &fakeQueue{}

	sched := NewReindexScheduler(&fakeFolderRepo{st: st}, queue, testLogger())
	require.NoError(t, sched.ReindexSubtree(context.Background(), "gone"))
	assert.Empty(t, queue.tasks)
}

func TestRemoveNodes_EnqueuesRemovals(t *testing.T) {
	st := newStore()
	queue := &fakeQueue{}

	sched := NewReindexScheduler(&fakeFolderRepo{st: st}, queue, testLogger())
	sched.RemoveNodes(context.Background(), []string{"n1", "n2"})

	require.Len(t, queue.tasks, 2)
	assert.Equal(t, TaskIndexRemove, queue.tasks[0].task)
	assert.Equal(t, "n1", queue.tasks[0].args["node_id"])
}

type indexWorkerFixture struct {
	*securityFixture
	indexer *fakeIndexer
	worker  *IndexWorker
}

func newIndexWorkerFixture() *indexWorkerFixture {
	sec := newSecurityFixture()
	idx := newFakeIndexer()
	return &indexWorkerFixture{
		securityFixture: sec,
		indexer:         idx,
		worker:          NewIndexWorker(sec.folders, sec.docs, sec.security, idx, testLogger()),
	}
}

func TestIndexWorker_BuildsDocumentEntry(t *testing.T) {
	f := newIndexWorkerFixture()
	ctx := context.Background()

	root := f.addFolder(t, nil, "", true)
	docsFolder := f.addFolder(t, &root.ID, "docs", true)
	doc := f.addDoc(t, docsFolder.ID, "report.txt")

	text := "quarterly numbers"
	require.NoError(t, f.docs.UpdateText(ctx, doc.ID, text))
	require.NoError(t, f.docs.UpdateLanguage(ctx, doc.ID, "eng"))
	f.grant(t, docsFolder.ID, "alice", models.PrincipalUser)

	require.NoError(t, f.worker.handleUpdate(ctx, map[string]string{"node_id": doc.ID}))

	entry := f.indexer.entries[doc.ID]
	require.NotNil(t, entry)
	assert.Equal(t, models.NodeKindDocument, entry.Kind)
	assert.Equal(t, "report.txt", entry.Title)
	assert.Equal(t, "/docs/report.txt", entry.Path)
	assert.Equal(t, text, entry.Text)
	assert.Equal(t, "eng", entry.Language)
	assert.ElementsMatch(t, []string{"alice", models.AdminPrincipal}, entry.Principals)
}

func TestIndexWorker_QuarantinedTextExcluded(t *testing.T) {
	f := newIndexWorkerFixture()
	ctx := context.Background()

	root := f.addFolder(t, nil, "", true)
	doc := f.addDoc(t, root.ID, "bad.txt")
	require.NoError(t, f.docs.UpdateText(ctx, doc.ID, "payload text"))
	require.NoError(t, f.docs.UpdateScanStatus(ctx, doc.ID, models.ScanStatusInfected))

	require.NoError(t, f.worker.handleUpdate(ctx, map[string]string{"node_id": doc.ID}))

	entry := f.indexer.entries[doc.ID]
	require.NotNil(t, entry)
	assert.NotContains(t, entry.Text, "payload")
}

func TestIndexWorker_FolderEntryUsesDescription(t *testing.T) {
	f := newIndexWorkerFixture()
	ctx := context.Background()

	root := f.addFolder(t, nil, "", true)
	folder := f.addFolder(t, &root.ID, "projects", true)
	folder.Description = "active work"
	require.NoError(t, f.folders.Update(ctx, folder))

	require.NoError(t, f.worker.handleUpdate(ctx, map[string]string{"node_id": folder.ID}))

	entry := f.indexer.entries[folder.ID]
	require.NotNil(t, entry)
	assert.Equal(t, models.NodeKindFolder, entry.Kind)
	assert.Equal(t, "/projects", entry.Path)
	assert.Equal(t, "active work", entry.Text)
}

func TestIndexWorker_DeletedNodeDropsEntry(t *testing.T) {
	f := newIndexWorkerFixture()
	ctx := context.Background()

	// A stale entry for a node that no longer exists gets cleaned up when
	// its update task finally runs.
	f.indexer.entries["ghost"] = &models.IndexEntry{NodeID: "ghost"}

	require.NoError(t, f.worker.handleUpdate(ctx, map[string]string{"node_id": "ghost"}))
	assert.NotContains(t, f.indexer.entries, "ghost")
}

func TestIndexWorker_HandleRemove(t *testing.T) {
	f := newIndexWorkerFixture()
	ctx := context.Background()

	f.indexer.entries["n1"] = &models.IndexEntry{NodeID: "n1"}
	require.NoError(t, f.worker.handleRemove(ctx, map[string]string{"node_id": "n1"}))
	assert.NotContains(t, f.indexer.entries, "n1")
}
