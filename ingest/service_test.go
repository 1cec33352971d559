package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/model"
	"docrag/store"
	"docrag/types"
)

type stubExtractor struct {
	text string
	err  error
}

func (e stubExtractor) Text(context.Context, string, string) (string, error) {
	return e.text, e.err
}

type failingEmbedder struct {
	model.VectorCodec
}

func (failingEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}

func (failingEmbedder) GenerateEmbeddings(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

const threeParagraphs = "This is the first paragraph of text.\n\n" +
	"Here continues the second paragraph.\n\n" +
	"Finally the third paragraph ends it."

func ingestConfig() types.Config {
	cfg := types.DefaultConfig()
	cfg.ChunkSize = 40
	cfg.ChunkOverlap = 0
	return cfg
}

func newDocument(t *testing.T, mem *store.MemoryStore) *types.Document {
	t.Helper()
	doc := &types.Document{
		Filename:    "notes.txt",
		ContentType: "text/plain",
		Status:      types.StatusUploaded,
	}
	require.NoError(t, mem.SaveDocument(t.Context(), doc))
	return doc
}

func TestProcessDocument(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := newDocument(t, mem)
	svc := NewService(mem, model.NewMockEmbedder(8), stubExtractor{text: threeParagraphs}, ingestConfig())

	require.NoError(t, svc.ProcessDocument(t.Context(), doc))

	assert.Equal(t, types.StatusProcessed, doc.Status)
	assert.Equal(t, 3, doc.TotalChunks)
	assert.Equal(t, threeParagraphs, doc.ExtractedText)

	chunks, err := mem.ChunksByDocumentID(t.Context(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, chunk.Embedding)
	}
	assert.Equal(t, "This is the first paragraph of text.", chunks[0].Text)
}

func TestProcessDocumentExtractionFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := newDocument(t, mem)
	svc := NewService(mem, model.NewMockEmbedder(8), stubExtractor{err: errors.New("converter down")}, ingestConfig())

	err := svc.ProcessDocument(t.Context(), doc)

	require.Error(t, err)
	assert.Equal(t, types.StatusError, doc.Status)
}

func TestProcessDocumentEmptyText(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := newDocument(t, mem)
	svc := NewService(mem, model.NewMockEmbedder(8), stubExtractor{text: "  \n\t "}, ingestConfig())

	err := svc.ProcessDocument(t.Context(), doc)

	require.ErrorIs(t, err, ErrNoText)
	assert.Equal(t, types.StatusError, doc.Status)
}

func TestProcessDocumentSkipsInvalidChunks(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := newDocument(t, mem)
	// The numeric paragraph survives splitting but fails chunk validation.
	text := "A meaningful paragraph with enough letters.\n\n" +
		"12 34 56 78 90 12 34 56 78\n\n" +
		"Another meaningful paragraph with letters."
	svc := NewService(mem, model.NewMockEmbedder(8), stubExtractor{text: text}, ingestConfig())

	require.NoError(t, svc.ProcessDocument(t.Context(), doc))

	chunks, err := mem.ChunksByDocumentID(t.Context(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	// Indices stay contiguous across skipped fragments.
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
}

func TestProcessDocumentKeepsChunksWhenEmbeddingFails(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := newDocument(t, mem)
	svc := NewService(mem, failingEmbedder{}, stubExtractor{text: threeParagraphs}, ingestConfig())

	require.NoError(t, svc.ProcessDocument(t.Context(), doc))

	assert.Equal(t, types.StatusProcessed, doc.Status)
	chunks, err := mem.ChunksByDocumentID(t.Context(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, chunk := range chunks {
		assert.Empty(t, chunk.Embedding)
	}
}

func TestProcessDocumentReplacesExistingChunks(t *testing.T) {
	mem := store.NewMemoryStore()
	doc := newDocument(t, mem)
	svc := NewService(mem, model.NewMockEmbedder(8), stubExtractor{text: threeParagraphs}, ingestConfig())

	require.NoError(t, svc.ProcessDocument(t.Context(), doc))
	require.NoError(t, svc.ProcessDocument(t.Context(), doc))

	chunks, err := mem.ChunksByDocumentID(t.Context(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	assert.Equal(t, 3, doc.TotalChunks)
}

func TestValidateUpload(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), model.NewMockEmbedder(8), stubExtractor{}, types.DefaultConfig())

	assert.Error(t, svc.ValidateUpload("", 10))
	assert.Error(t, svc.ValidateUpload("notes.txt", 0))
	assert.Error(t, svc.ValidateUpload("notes.txt", types.DefaultConfig().MaxFileSize+1))
	assert.Error(t, svc.ValidateUpload("binary.exe", 10))

	assert.NoError(t, svc.ValidateUpload("report.pdf", 10))
	assert.NoError(t, svc.ValidateUpload("NOTES.TXT", 10))
}

func TestUniqueFilename(t *testing.T) {
	a := UniqueFilename("report.pdf")
	b := UniqueFilename("report.pdf")

	assert.NotEqual(t, a, b)
	assert.Equal(t, ".pdf", filepath.Ext(a))
	assert.True(t, strings.HasPrefix(a, "report_"))
}
