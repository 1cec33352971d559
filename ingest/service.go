// Package ingest processes uploaded documents: extract text, chunk it,
// embed each chunk and persist the result. Embedding failures leave a
// chunk keyword-searchable rather than discarding it, and chunks embedded
// before a mid-ingestion failure are kept.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"docrag/chunker"
	"docrag/model"
	"docrag/store"
	"docrag/types"
)

// ErrNoText is returned when extraction produced an empty result.
var ErrNoText = errors.New("no text extracted from document")

type textExtractor interface {
	Text(ctx context.Context, path, contentType string) (string, error)
}

type Service struct {
	store     store.Storer
	embedder  model.EmbeddingProvider
	extractor textExtractor
	cfg       types.Config
	logger    *slog.Logger
}

func NewService(storer store.Storer, embedder model.EmbeddingProvider, extractor textExtractor, cfg types.Config) *Service {
	return &Service{
		store:     storer,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// ProcessDocument runs the ingestion pipeline for an already-registered
// document. On any failure the document lands in the error state with
// whatever chunks made it in.
func (s *Service) ProcessDocument(ctx context.Context, doc *types.Document) error {
	s.logger.Info("processing document", "id", doc.ID, "filename", doc.Filename)

	doc.Status = types.StatusProcessing
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return err
	}

	text, err := s.extractor.Text(ctx, doc.FilePath, doc.ContentType)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrNoText
	}
	if err != nil {
		s.logger.Error("text extraction failed", "id", doc.ID, "error", err)
		s.markError(ctx, doc)
		return fmt.Errorf("extracting %s: %w", doc.Filename, err)
	}
	doc.ExtractedText = text

	// Re-processing replaces the chunk set wholesale.
	if err := s.store.DeleteChunksByDocumentID(ctx, doc.ID); err != nil {
		s.markError(ctx, doc)
		return err
	}

	index := 0
	for _, piece := range chunker.Split(text, s.cfg) {
		if !chunker.IsValidChunk(piece) {
			continue
		}

		chunk := &types.Chunk{DocumentID: doc.ID, Index: index, Text: piece}
		vec, err := s.embedder.GenerateEmbedding(ctx, piece)
		if err != nil {
			// Stored without a vector the chunk stays reachable by
			// keyword fallback.
			s.logger.Warn("embedding failed for chunk", "id", doc.ID, "index", index, "error", err)
		} else {
			chunk.Embedding = vec
		}

		if err := s.store.SaveChunk(ctx, chunk); err != nil {
			doc.TotalChunks = index
			s.markError(ctx, doc)
			return fmt.Errorf("saving chunk %d of %s: %w", index, doc.Filename, err)
		}
		index++
	}

	doc.TotalChunks = index
	doc.Status = types.StatusProcessed
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return err
	}

	s.logger.Info("document processed", "id", doc.ID, "chunks", index)
	return nil
}

// DeleteDocument removes the stored file and the database record; chunks
// cascade with the document.
func (s *Service) DeleteDocument(ctx context.Context, id int64) error {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := removeFile(doc.FilePath); err != nil {
		s.logger.Warn("failed to remove file", "path", doc.FilePath, "error", err)
	}
	return s.store.DeleteDocument(ctx, id)
}

// ValidateUpload applies the configured filename, extension and size
// rules before anything touches disk.
func (s *Service) ValidateUpload(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return errors.New("invalid filename")
	}
	if size <= 0 {
		return errors.New("file is empty")
	}
	if size > s.cfg.MaxFileSize {
		return fmt.Errorf("file size %d exceeds maximum of %d bytes", size, s.cfg.MaxFileSize)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !slices.Contains(s.cfg.AllowedExtensions, ext) {
		return fmt.Errorf("file type not supported: %s", ext)
	}
	return nil
}

// UniqueFilename suffixes the base name so concurrent uploads of the same
// file never collide on disk.
func UniqueFilename(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext)
}

func removeFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Service) markError(ctx context.Context, doc *types.Document) {
	doc.Status = types.StatusError
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		s.logger.Error("failed to mark document errored", "id", doc.ID, "error", err)
	}
}
