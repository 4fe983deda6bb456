package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbase/docbase/internal/store"
	"github.com/docbase/docbase/internal/testutil"
)

func setup(t *testing.T) (*store.Store, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	s, err := store.New(db.Pool, nil)
	require.NoError(t, err)
	return s, context.Background()
}

func TestProjectLifecycle(t *testing.T) {
	s, ctx := setup(t)

	p, err := s.CreateProject(ctx, "handbook", "internal handbook", 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1000, p.ChunkSize)
	assert.Equal(t, 200, p.ChunkOverlap)

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "handbook", got.Name)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateProjectValidation(t *testing.T) {
	s, ctx := setup(t)

	_, err := s.CreateProject(ctx, "  ", "", 0, 0)
	assert.Error(t, err)

	_, err = s.CreateProject(ctx, "bad", "", 100, 100)
	assert.Error(t, err)
}

func TestDocumentLifecycle(t *testing.T) {
	s, ctx := setup(t)

	p, err := s.CreateProject(ctx, "docs", "", 0, 0)
	require.NoError(t, err)

	d, err := s.CreateDocument(ctx, p.ID, "guide.PDF", "/uploads/guide.pdf")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, d.Status)
	assert.Equal(t, "pdf", d.FileType)
	assert.Nil(t, d.ProcessedAt)

	require.NoError(t, s.UpdateStatus(ctx, d.ID, store.StatusProcessing, "Processing document..."))
	require.NoError(t, s.SetCounters(ctx, d.ID, 5, 3, 4500))
	require.NoError(t, s.UpdateStatus(ctx, d.ID, store.StatusCompleted, "Document processed successfully"))

	got, err := s.GetDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, 5, got.ChunkCount)
	assert.Equal(t, 3, got.PageCount)
	assert.Equal(t, 4500, got.CharacterCount)
	require.NotNil(t, got.ProcessedAt)

	count, err := s.CountCompletedDocuments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ok, err := s.HasQueryableDocuments(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateStatusRejectsShortcuts(t *testing.T) {
	s, ctx := setup(t)

	p, err := s.CreateProject(ctx, "docs", "", 0, 0)
	require.NoError(t, err)
	d, err := s.CreateDocument(ctx, p.ID, "a.txt", "/uploads/a.txt")
	require.NoError(t, err)

	err = s.UpdateStatus(ctx, d.ID, store.StatusCompleted, "skipped processing")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	err = s.UpdateStatus(ctx, d.ID, "archived", "")
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	err = s.UpdateStatus(ctx, "no-such-doc", store.StatusProcessing, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReturnToPendingResetsCounters(t *testing.T) {
	s, ctx := setup(t)

	p, err := s.CreateProject(ctx, "docs", "", 0, 0)
	require.NoError(t, err)
	d, err := s.CreateDocument(ctx, p.ID, "a.txt", "/uploads/a.txt")
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, d.ID, store.StatusProcessing, ""))
	require.NoError(t, s.SetCounters(ctx, d.ID, 7, 2, 3000))
	require.NoError(t, s.UpdateStatus(ctx, d.ID, store.StatusFailed, "embedding quota exceeded"))

	require.NoError(t, s.UpdateStatus(ctx, d.ID, store.StatusPending, ""))

	got, err := s.GetDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, got.Status)
	assert.Empty(t, got.StatusMessage)
	assert.Zero(t, got.ChunkCount)
	assert.Zero(t, got.PageCount)
	assert.Zero(t, got.CharacterCount)
	assert.Nil(t, got.ProcessedAt)
}

func TestDeleteProjectCascadesDocuments(t *testing.T) {
	s, ctx := setup(t)

	p, err := s.CreateProject(ctx, "docs", "", 0, 0)
	require.NoError(t, err)
	d, err := s.CreateDocument(ctx, p.ID, "a.txt", "/uploads/a.txt")
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, p.ID))

	_, err = s.GetDocument(ctx, d.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestListDocumentsScopedToProject(t *testing.T) {
	s, ctx := setup(t)

	p1, err := s.CreateProject(ctx, "one", "", 0, 0)
	require.NoError(t, err)
	p2, err := s.CreateProject(ctx, "two", "", 0, 0)
	require.NoError(t, err)

	_, err = s.CreateDocument(ctx, p1.ID, "a.txt", "/uploads/a.txt")
	require.NoError(t, err)
	_, err = s.CreateDocument(ctx, p2.ID, "b.txt", "/uploads/b.txt")
	require.NoError(t, err)

	docs, err := s.ListDocuments(ctx, p1.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.txt", docs[0].Filename)
}
