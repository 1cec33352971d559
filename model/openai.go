package model

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder uses an OpenAI-compatible embeddings API through the
// go-openai client. Batches go out as a single request.
type OpenAIEmbedder struct {
	VectorCodec

	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: openai.EmbeddingModel(model)}
}

func NewOpenAIEmbedderFromEnv() *OpenAIEmbedder {
	model := os.Getenv("OPENAI_EMBEDDING_MODEL")
	if model == "" {
		model = "text-embedding-3-small"
	}
	return NewOpenAIEmbedder(newOpenAIClientFromEnv(), model)
}

func (e *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyInput
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, newProviderError("openai", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, newProviderError("openai", fmt.Errorf("%w: %d embeddings for %d inputs", ErrMalformedResponse, len(resp.Data), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, newProviderError("openai", fmt.Errorf("%w: embedding index %d out of range", ErrMalformedResponse, item.Index))
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// OpenAIGenerator produces completions through the chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	system string
}

func NewOpenAIGenerator(client *openai.Client, model, system string) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, model: model, system: system}
}

func NewOpenAIGeneratorFromEnv() *OpenAIGenerator {
	model := os.Getenv("OPENAI_CHAT_MODEL")
	if model == "" {
		model = openai.GPT4oMini
	}
	return NewOpenAIGenerator(newOpenAIClientFromEnv(), model, os.Getenv("LLM_SYSTEM_PROMPT"))
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	messages := []openai.ChatCompletionMessage{}
	if g.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: g.system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", newProviderError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", newProviderError("openai", fmt.Errorf("%w: no choices returned", ErrMalformedResponse))
	}
	return resp.Choices[0].Message.Content, nil
}

func newOpenAIClientFromEnv() *openai.Client {
	cfg := openai.DefaultConfig(os.Getenv("OPENAI_API_KEY"))
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
