package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"docrag/model"
	"docrag/types"
)

// MemoryStore keeps everything in process memory with cosine ranking done
// in Go. It backs tests and storeless development runs.
type MemoryStore struct {
	mu sync.RWMutex

	docs   []types.Document
	chunks []types.Chunk
	query  []types.QueryOutcome

	nextDocID   int64
	nextChunkID int64
	nextQueryID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextDocID: 1, nextChunkID: 1, nextQueryID: 1}
}

func (m *MemoryStore) SaveDocument(_ context.Context, doc *types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	doc.ID = m.nextDocID
	m.nextDocID++
	if doc.UploadDate.IsZero() {
		doc.UploadDate = now
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = types.StatusUploaded
	}
	m.docs = append(m.docs, *doc)
	return nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, doc *types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.docs {
		if m.docs[i].ID == doc.ID {
			doc.UpdatedAt = time.Now()
			m.docs[i] = *doc
			return nil
		}
	}
	return fmt.Errorf("document %d: %w", doc.ID, ErrNotFound)
}

func (m *MemoryStore) GetDocumentByID(_ context.Context, id int64) (*types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.docs {
		if m.docs[i].ID == id {
			doc := m.docs[i]
			return &doc, nil
		}
	}
	return nil, fmt.Errorf("document %d: %w", id, ErrNotFound)
}

func (m *MemoryStore) ListDocuments(_ context.Context) ([]types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]types.Document, len(m.docs))
	copy(docs, m.docs)
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadDate.After(docs[j].UploadDate)
	})
	return docs, nil
}

func (m *MemoryStore) FindDocumentsByRefs(_ context.Context, ids []int64, names []string) ([]types.Document, error) {
	if len(ids) == 0 && len(names) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	wantID := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wantID[id] = true
	}
	wantName := make(map[string]bool, len(names))
	for _, name := range names {
		wantName[name] = true
	}

	var docs []types.Document
	for i := range m.docs {
		if wantID[m.docs[i].ID] || wantName[m.docs[i].Filename] {
			docs = append(docs, m.docs[i])
		}
	}
	return docs, nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.docs {
		if m.docs[i].ID == id {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			m.deleteChunksLocked(id)
			return nil
		}
	}
	return fmt.Errorf("document %d: %w", id, ErrNotFound)
}

func (m *MemoryStore) SaveChunk(_ context.Context, c *types.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.nextChunkID
	m.nextChunkID++
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	stored := *c
	stored.DocumentName = m.documentNameLocked(c.DocumentID)
	m.chunks = append(m.chunks, stored)
	return nil
}

func (m *MemoryStore) ChunksByDocumentID(_ context.Context, docID int64) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chunks []types.Chunk
	for i := range m.chunks {
		if m.chunks[i].DocumentID == docID {
			chunks = append(chunks, m.chunks[i])
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (m *MemoryStore) DeleteChunksByDocumentID(_ context.Context, docID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteChunksLocked(docID)
	return nil
}

func (m *MemoryStore) CountChunks(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.chunks)), nil
}

func (m *MemoryStore) SearchSimilar(_ context.Context, vec []float32, threshold float64, limit int) ([]types.Chunk, error) {
	if len(vec) == 0 {
		return nil, model.ErrEmptyInput
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []types.Chunk
	for i := range m.chunks {
		if len(m.chunks[i].Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(vec, m.chunks[i].Embedding)
		if sim >= threshold {
			chunk := m.chunks[i]
			chunk.Similarity = sim
			matches = append(matches, chunk)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryStore) ChunksWithEmbeddings(_ context.Context, limit int) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chunks []types.Chunk
	for i := range m.chunks {
		if len(m.chunks[i].Embedding) == 0 {
			continue
		}
		chunks = append(chunks, m.chunks[i])
		if len(chunks) == limit {
			break
		}
	}
	return chunks, nil
}

func (m *MemoryStore) AllChunks(_ context.Context) ([]types.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chunks := make([]types.Chunk, len(m.chunks))
	copy(chunks, m.chunks)
	return chunks, nil
}

func (m *MemoryStore) SaveQuery(_ context.Context, q *types.QueryOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q.ID = m.nextQueryID
	m.nextQueryID++
	if q.QueryDate.IsZero() {
		q.QueryDate = time.Now()
	}
	m.query = append(m.query, *q)
	return nil
}

func (m *MemoryStore) RecentQueries(_ context.Context, limit int) ([]types.QueryOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queries := make([]types.QueryOutcome, len(m.query))
	copy(queries, m.query)
	sort.SliceStable(queries, func(i, j int) bool { return queries[i].QueryDate.After(queries[j].QueryDate) })
	if len(queries) > limit {
		queries = queries[:limit]
	}
	return queries, nil
}

func (m *MemoryStore) deleteChunksLocked(docID int64) {
	kept := m.chunks[:0]
	for i := range m.chunks {
		if m.chunks[i].DocumentID != docID {
			kept = append(kept, m.chunks[i])
		}
	}
	m.chunks = kept
}

func (m *MemoryStore) documentNameLocked(docID int64) string {
	for i := range m.docs {
		if m.docs[i].ID == docID {
			return m.docs[i].Filename
		}
	}
	return ""
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// guard against accidental divergence from the interface
var _ Storer = (*MemoryStore)(nil)
var _ Storer = (*PostgresStore)(nil)
