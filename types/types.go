package types

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "UPLOADED"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusProcessed  DocumentStatus = "PROCESSED"
	StatusError      DocumentStatus = "ERROR"
)

// Document is an uploaded file together with its extracted text and
// processing state. Chunks are stored separately and fetched on demand.
type Document struct {
	ID            int64          `json:"id"`
	Filename      string         `json:"filename"`
	FilePath      string         `json:"-"`
	ContentType   string         `json:"content_type"`
	FileSize      int64          `json:"file_size"`
	Status        DocumentStatus `json:"status"`
	ExtractedText string         `json:"-"`
	TotalChunks   int            `json:"total_chunks"`
	UploadDate    time.Time      `json:"upload_date"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Chunk is one retrievable segment of a document. Index values are
// contiguous from 0 within a document. A chunk without an embedding is
// reachable by keyword fallback only.
type Chunk struct {
	ID           int64     `json:"id"`
	DocumentID   int64     `json:"document_id"`
	DocumentName string    `json:"document_name,omitempty"`
	Index        int       `json:"index"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"-"`
	Similarity   float64   `json:"similarity,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	QuestionTypeDocument = "document-specific"
	QuestionTypeGeneral  = "general-knowledge"
	QuestionTypeMixed    = "mixed"
)

// IntentAnalysis is the classifier's verdict on how a question should be
// answered. Non-empty DocumentIDs or DocumentNames take precedence over
// similarity search downstream, regardless of NeedsDocumentSearch.
type IntentAnalysis struct {
	NeedsDocumentSearch bool     `json:"needs_document_search"`
	DocumentIDs         []int64  `json:"document_ids"`
	DocumentNames       []string `json:"document_names"`
	SearchQuery         string   `json:"search_query"`
	QuestionType        string   `json:"question_type"`
	Reasoning           string   `json:"reasoning"`
}

func (a IntentAnalysis) HasDocumentRefs() bool {
	return len(a.DocumentIDs) > 0 || len(a.DocumentNames) > 0
}

// QueryOutcome is the persisted record of one answered question. One is
// produced for every query, including those where every enhancement layer
// failed.
type QueryOutcome struct {
	ID                int64     `json:"id"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	RelevantDocuments string    `json:"relevant_documents"`
	ProcessingTimeMs  int64     `json:"processing_time_ms"`
	QueryDate         time.Time `json:"query_date"`
}

// Config carries the tunables consumed by the core pipeline. It is built
// once at startup and passed to components as an immutable value.
type Config struct {
	ChunkSize            int     `json:"chunk_size"`
	ChunkOverlap         int     `json:"chunk_overlap"`
	MaxChunksPerDocument int     `json:"max_chunks_per_document"`
	SimilarityThreshold  float64 `json:"similarity_threshold"`
	MaxResults           int     `json:"max_results"`

	UploadDir         string   `json:"upload_dir"`
	MaxFileSize       int64    `json:"max_file_size"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:            1000,
		ChunkOverlap:         200,
		MaxChunksPerDocument: 500,
		SimilarityThreshold:  0.7,
		MaxResults:           10,
		UploadDir:            "./uploads",
		MaxFileSize:          50 << 20,
		AllowedExtensions:    []string{"pdf", "docx", "txt"},
	}
}

// ConfigFromEnv reads overrides from the environment on top of the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v, err := strconv.Atoi(os.Getenv("CHUNK_SIZE")); err == nil && v > 0 {
		cfg.ChunkSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("CHUNK_OVERLAP")); err == nil && v >= 0 {
		cfg.ChunkOverlap = v
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_CHUNKS_PER_DOCUMENT")); err == nil && v > 0 {
		cfg.MaxChunksPerDocument = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("SIMILARITY_THRESHOLD"), 64); err == nil {
		cfg.SimilarityThreshold = v
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_RESULTS")); err == nil && v > 0 {
		cfg.MaxResults = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v, err := strconv.ParseInt(os.Getenv("MAX_FILE_SIZE"), 10, 64); err == nil && v > 0 {
		cfg.MaxFileSize = v
	}
	if v := os.Getenv("ALLOWED_EXTENSIONS"); v != "" {
		cfg.AllowedExtensions = strings.Split(v, ",")
	}
	return cfg
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxChunksPerDocument <= 0 {
		return fmt.Errorf("max chunks per document must be positive, got %d", c.MaxChunksPerDocument)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", c.MaxResults)
	}
	return nil
}
