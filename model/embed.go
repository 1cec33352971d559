package model

import (
	"context"
	"log/slog"
	"os"
)

// EmbeddingProvider converts text into fixed-dimension vectors and encodes
// them in the datastore literal format. Implementations are chosen once at
// startup; callers never branch on the concrete type.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	MarshalVector(v []float32) (string, error)
	UnmarshalVector(s string) ([]float32, error)
}

// Generator produces a completion for a prompt. The answer pipeline treats
// any error or blank result as a trigger for its deterministic fallbacks.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewEmbedderFromEnv selects the embedding provider from EMBEDDING_PROVIDER
// (ollama, openai or mock; ollama by default).
func NewEmbedderFromEnv(logger *slog.Logger) EmbeddingProvider {
	switch os.Getenv("EMBEDDING_PROVIDER") {
	case "openai":
		logger.Info("using OpenAI-compatible embeddings", "model", os.Getenv("OPENAI_EMBEDDING_MODEL"))
		return NewOpenAIEmbedderFromEnv()
	case "mock":
		logger.Info("using mock embeddings")
		return NewMockEmbedder(defaultDimension)
	default:
		logger.Info("using Ollama embeddings", "model", os.Getenv("OLLAMA_EMBEDDING_MODEL"))
		return NewOllamaEmbedderFromEnv()
	}
}

// NewGeneratorFromEnv selects the generation provider from LLM_PROVIDER
// (ollama or openai; ollama by default).
func NewGeneratorFromEnv(logger *slog.Logger) Generator {
	switch os.Getenv("LLM_PROVIDER") {
	case "openai":
		logger.Info("using OpenAI-compatible generation", "model", os.Getenv("OPENAI_CHAT_MODEL"))
		return NewOpenAIGeneratorFromEnv()
	default:
		logger.Info("using Ollama generation", "model", os.Getenv("LLM_MODEL"))
		return NewOllamaGeneratorFromEnv()
	}
}

// nomic-embed-text dimensionality, mirrored by the vector column width.
const defaultDimension = 768
