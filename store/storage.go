package store

import (
	"context"
	"errors"

	"docrag/types"
)

// ErrNotFound is returned when a lookup matches nothing. The query
// pipeline treats it as a fall-through, never as a hard failure.
var ErrNotFound = errors.New("not found")

// Storer is the persistence boundary shared by ingestion and querying:
// documents keyed by id, chunks with optional vectors, nearest-neighbor
// search, and the append-only query history.
type Storer interface {
	SaveDocument(ctx context.Context, doc *types.Document) error
	UpdateDocument(ctx context.Context, doc *types.Document) error
	GetDocumentByID(ctx context.Context, id int64) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]types.Document, error)
	// FindDocumentsByRefs resolves explicit references by id set or exact
	// filename set.
	FindDocumentsByRefs(ctx context.Context, ids []int64, names []string) ([]types.Document, error)
	DeleteDocument(ctx context.Context, id int64) error

	SaveChunk(ctx context.Context, chunk *types.Chunk) error
	ChunksByDocumentID(ctx context.Context, docID int64) ([]types.Chunk, error)
	DeleteChunksByDocumentID(ctx context.Context, docID int64) error
	CountChunks(ctx context.Context) (int64, error)
	// SearchSimilar returns up to limit chunks whose cosine similarity to
	// vec is at least threshold, most similar first.
	SearchSimilar(ctx context.Context, vec []float32, threshold float64, limit int) ([]types.Chunk, error)
	// ChunksWithEmbeddings returns embedded chunks in store order, used
	// when the thresholded search comes back empty.
	ChunksWithEmbeddings(ctx context.Context, limit int) ([]types.Chunk, error)
	// AllChunks returns every chunk in store order for keyword fallback.
	AllChunks(ctx context.Context) ([]types.Chunk, error)

	SaveQuery(ctx context.Context, q *types.QueryOutcome) error
	RecentQueries(ctx context.Context, limit int) ([]types.QueryOutcome, error)
}
