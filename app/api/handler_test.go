package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/app/agent"
	"docrag/ingest"
	"docrag/model"
	"docrag/retriever"
	"docrag/store"
	"docrag/types"
)

type staticGenerator struct {
	reply string
	err   error
}

func (g staticGenerator) Generate(context.Context, string) (string, error) {
	return g.reply, g.err
}

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	cfg := types.DefaultConfig()
	cfg.UploadDir = t.TempDir()
	mem := store.NewMemoryStore()
	embedder := model.NewMockEmbedder(8)
	gen := staticGenerator{err: errors.New("no model in tests")}
	retr := retriever.New(mem, embedder, cfg)
	ing := ingest.NewService(mem, embedder, ingest.NewExtractor("http://unused"), cfg)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	queryHandler := NewQueryHandler(agent.New(mem, retr, gen), mem)
	documentHandler := NewDocumentHandler(mem, ing, cfg)

	app.Get("/check/healthy", NewCheckHandler().HandleHealthy)
	app.Post("/api/v1/query", queryHandler.HandleQuery)
	app.Get("/api/v1/history", queryHandler.HandleHistory)
	app.Post("/api/v1/documents", documentHandler.HandleUpload)
	app.Get("/api/v1/documents", documentHandler.HandleList)
	app.Get("/api/v1/documents/:id", documentHandler.HandleGet)
	app.Get("/api/v1/documents/:id/chunks", documentHandler.HandleChunks)
	app.Delete("/api/v1/documents/:id", documentHandler.HandleDelete)
	app.Get("/api/v1/config", NewConfigHandler(cfg).HandleConfig)

	return app, mem
}

func TestHandleHealthy(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/check/healthy", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHandleQueryValidation(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"question": ""}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var payload types.ValidationError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Contains(t, payload.Errors, "Question")
}

func TestHandleQueryAlwaysAnswers(t *testing.T) {
	app, mem := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"question": "Anything?"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var outcome types.QueryOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.NotEmpty(t, outcome.Answer)

	history, err := mem.RecentQueries(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHandleUploadTextFile(t *testing.T) {
	app, mem := newTestApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = io.WriteString(part, "A paragraph with enough text to make one valid chunk.")
	require.NoError(t, err)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var doc types.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, types.StatusProcessed, doc.Status)
	assert.Equal(t, 1, doc.TotalChunks)

	chunks, err := mem.ChunksByDocumentID(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Embedding)
}

type saveFailStore struct {
	store.Storer
}

func (s *saveFailStore) SaveDocument(context.Context, *types.Document) error {
	return errors.New("database down")
}

func TestHandleUploadRemovesFileWhenSaveFails(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.UploadDir = t.TempDir()
	st := &saveFailStore{Storer: store.NewMemoryStore()}
	embedder := model.NewMockEmbedder(8)
	ing := ingest.NewService(st, embedder, ingest.NewExtractor("http://unused"), cfg)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/v1/documents", NewDocumentHandler(st, ing, cfg).HandleUpload)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	io.WriteString(part, "Some content that would have become a chunk.")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	entries, err := os.ReadDir(cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleUploadRejectsUnknownExtension(t *testing.T) {
	app, _ := newTestApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "malware.exe")
	require.NoError(t, err)
	io.WriteString(part, "nope")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHandleGetDocument(t *testing.T) {
	app, mem := newTestApp(t)
	doc := &types.Document{Filename: "a.pdf"}
	require.NoError(t, mem.SaveDocument(context.Background(), doc))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/99", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/documents/zzz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleDeleteDocument(t *testing.T) {
	app, mem := newTestApp(t)
	doc := &types.Document{Filename: "a.pdf"}
	require.NoError(t, mem.SaveDocument(context.Background(), doc))

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, err = mem.GetDocumentByID(context.Background(), doc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandleConfig(t *testing.T) {
	app, _ := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cfg types.Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, types.DefaultConfig().ChunkSize, cfg.ChunkSize)
}
