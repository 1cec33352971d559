package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"docrag/model"
	"docrag/types"
)

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL PRIMARY KEY,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		content_type TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'UPLOADED',
		extracted_text TEXT NOT NULL DEFAULT '',
		total_chunks INTEGER NOT NULL DEFAULT 0,
		upload_date TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id BIGSERIAL PRIMARY KEY,
		document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_text TEXT NOT NULL,
		chunk_index INT NOT NULL,
		embedding_vector vector(768),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON document_chunks
		USING ivfflat (embedding_vector vector_cosine_ops) WITH (lists = 100);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON document_chunks(document_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id BIGSERIAL PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		relevant_documents TEXT NOT NULL DEFAULT '',
		processing_time_ms BIGINT NOT NULL DEFAULT 0,
		query_date TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc *types.Document) error {
	now := time.Now()
	if doc.UploadDate.IsZero() {
		doc.UploadDate = now
	}
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = types.StatusUploaded
	}

	query := `INSERT INTO documents (filename, file_path, content_type, file_size, status, extracted_text, total_chunks, upload_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	return p.pool.QueryRow(ctx, query,
		doc.Filename,
		doc.FilePath,
		doc.ContentType,
		doc.FileSize,
		doc.Status,
		doc.ExtractedText,
		doc.TotalChunks,
		doc.UploadDate,
		doc.CreatedAt,
		doc.UpdatedAt,
	).Scan(&doc.ID)
}

func (p *PostgresStore) UpdateDocument(ctx context.Context, doc *types.Document) error {
	doc.UpdatedAt = time.Now()
	query := `UPDATE documents SET
			status = $2,
			extracted_text = $3,
			total_chunks = $4,
			updated_at = $5
		WHERE id = $1`
	tag, err := p.pool.Exec(ctx, query, doc.ID, doc.Status, doc.ExtractedText, doc.TotalChunks, doc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", doc.ID, ErrNotFound)
	}
	return nil
}

const documentColumns = `id, filename, file_path, content_type, file_size, status, extracted_text, total_chunks, upload_date, created_at, updated_at`

func scanDocument(row pgx.Row) (*types.Document, error) {
	doc := &types.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.FilePath,
		&doc.ContentType,
		&doc.FileSize,
		&doc.Status,
		&doc.ExtractedText,
		&doc.TotalChunks,
		&doc.UploadDate,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, id int64) (*types.Document, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (p *PostgresStore) ListDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY upload_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) FindDocumentsByRefs(ctx context.Context, ids []int64, names []string) ([]types.Document, error) {
	if len(ids) == 0 && len(names) == 0 {
		return nil, nil
	}
	if ids == nil {
		ids = []int64{}
	}
	if names == nil {
		names = []string{}
	}

	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE id = ANY($1) OR filename = ANY($2)
		ORDER BY id`
	rows, err := p.pool.Query(ctx, query, ids, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) DeleteDocument(ctx context.Context, id int64) error {
	// Chunks go with the document via ON DELETE CASCADE.
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) SaveChunk(ctx context.Context, c *types.Chunk) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	var literal *string
	if len(c.Embedding) > 0 {
		s, err := model.MarshalVector(c.Embedding)
		if err != nil {
			return err
		}
		literal = &s
	}

	query := `INSERT INTO document_chunks (document_id, chunk_text, chunk_index, embedding_vector, created_at)
		VALUES ($1, $2, $3, CAST($4 AS vector), $5)
		RETURNING id`
	return p.pool.QueryRow(ctx, query, c.DocumentID, c.Text, c.Index, literal, c.CreatedAt).Scan(&c.ID)
}

func (p *PostgresStore) ChunksByDocumentID(ctx context.Context, docID int64) ([]types.Chunk, error) {
	query := `SELECT dc.id, dc.document_id, d.filename, dc.chunk_index, dc.chunk_text, dc.embedding_vector, dc.created_at
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id
		WHERE dc.document_id = $1
		ORDER BY dc.chunk_index`
	return p.queryChunks(ctx, query, docID)
}

func (p *PostgresStore) DeleteChunksByDocumentID(ctx context.Context, docID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, docID)
	return err
}

func (p *PostgresStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

func (p *PostgresStore) SearchSimilar(ctx context.Context, vec []float32, threshold float64, limit int) ([]types.Chunk, error) {
	if len(vec) == 0 {
		return nil, model.ErrEmptyInput
	}

	query := `SELECT dc.id, dc.document_id, d.filename, dc.chunk_index, dc.chunk_text, dc.embedding_vector, dc.created_at,
			1 - (dc.embedding_vector <=> $1) AS similarity
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id
		WHERE dc.embedding_vector IS NOT NULL
			AND 1 - (dc.embedding_vector <=> $1) >= $2
		ORDER BY dc.embedding_vector <=> $1
		LIMIT $3`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vec), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var embedding pgvector.Vector
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.DocumentName,
			&chunk.Index,
			&chunk.Text,
			&embedding,
			&chunk.CreatedAt,
			&chunk.Similarity,
		); err != nil {
			return nil, err
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) ChunksWithEmbeddings(ctx context.Context, limit int) ([]types.Chunk, error) {
	query := `SELECT dc.id, dc.document_id, d.filename, dc.chunk_index, dc.chunk_text, dc.embedding_vector, dc.created_at
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id
		WHERE dc.embedding_vector IS NOT NULL
		ORDER BY dc.id
		LIMIT $1`
	return p.queryChunks(ctx, query, limit)
}

func (p *PostgresStore) AllChunks(ctx context.Context) ([]types.Chunk, error) {
	query := `SELECT dc.id, dc.document_id, d.filename, dc.chunk_index, dc.chunk_text, dc.embedding_vector, dc.created_at
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id
		ORDER BY dc.id`
	return p.queryChunks(ctx, query)
}

func (p *PostgresStore) queryChunks(ctx context.Context, query string, args ...any) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var chunk types.Chunk
		var embedding *pgvector.Vector
		if err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.DocumentName,
			&chunk.Index,
			&chunk.Text,
			&embedding,
			&chunk.CreatedAt,
		); err != nil {
			return nil, err
		}
		if embedding != nil {
			chunk.Embedding = embedding.Slice()
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) SaveQuery(ctx context.Context, q *types.QueryOutcome) error {
	if q.QueryDate.IsZero() {
		q.QueryDate = time.Now()
	}
	query := `INSERT INTO query_history (question, answer, relevant_documents, processing_time_ms, query_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return p.pool.QueryRow(ctx, query, q.Question, q.Answer, q.RelevantDocuments, q.ProcessingTimeMs, q.QueryDate).Scan(&q.ID)
}

func (p *PostgresStore) RecentQueries(ctx context.Context, limit int) ([]types.QueryOutcome, error) {
	query := `SELECT id, question, answer, relevant_documents, processing_time_ms, query_date
		FROM query_history
		ORDER BY query_date DESC
		LIMIT $1`
	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var queries []types.QueryOutcome
	for rows.Next() {
		var q types.QueryOutcome
		if err := rows.Scan(&q.ID, &q.Question, &q.Answer, &q.RelevantDocuments, &q.ProcessingTimeMs, &q.QueryDate); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool closed")
	}
}
