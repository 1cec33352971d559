package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ChunkOverlap = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxResults = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("ALLOWED_EXTENSIONS", "pdf,txt")
	t.Setenv("MAX_RESULTS", "not-a-number")

	cfg := ConfigFromEnv()

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 0.5, cfg.SimilarityThreshold)
	assert.Equal(t, []string{"pdf", "txt"}, cfg.AllowedExtensions)
	// Unparseable values keep the default.
	assert.Equal(t, DefaultConfig().MaxResults, cfg.MaxResults)
}

func TestQueryParamsValidate(t *testing.T) {
	params := QueryParams{Question: "What does the contract say?"}
	assert.Empty(t, params.Validate())

	empty := QueryParams{}
	errs := empty.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs, "Question")
}

func TestIntentAnalysisHasDocumentRefs(t *testing.T) {
	assert.False(t, IntentAnalysis{}.HasDocumentRefs())
	assert.True(t, IntentAnalysis{DocumentIDs: []int64{3}}.HasDocumentRefs())
	assert.True(t, IntentAnalysis{DocumentNames: []string{"a.pdf"}}.HasDocumentRefs())
}
