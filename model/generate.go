package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// OllamaGenerator calls the Ollama generate endpoint. Streaming is disabled
// in the request, but the parser still accumulates a chunked body in case
// the server streams anyway.
type OllamaGenerator struct {
	baseURL string
	model   string
	system  string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewOllamaGenerator(baseURL, model, system string) *OllamaGenerator {
	return &OllamaGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		system:  system,
		client:  http.DefaultClient,
		timeout: 120 * time.Second,
		logger:  slog.Default(),
	}
}

func NewOllamaGeneratorFromEnv() *OllamaGenerator {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "llama3"
	}
	return NewOllamaGenerator(baseURL, model, os.Getenv("LLM_SYSTEM_PROMPT"))
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	start := time.Now()
	defer func() {
		g.logger.Debug("llm call finished", "took", time.Since(start))
	}()

	reqBody, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.model,
		System: g.system,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	if count, err := countTokens(reqBody); err == nil {
		g.logger.Debug("prompt size", "tokens", count, "bytes", len(reqBody))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", newProviderError("ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", newProviderError("ollama", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(payload), 200)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newProviderError("ollama", err)
	}

	var genResp ollamaGenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// Chunked body: collect the response fields of every JSON object.
	var output strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk ollamaGenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output.WriteString(chunk.Response)
	}
	if output.Len() == 0 {
		return "", newProviderError("ollama", fmt.Errorf("%w: no response field in payload %s", ErrMalformedResponse, truncate(string(body), 200)))
	}
	return output.String(), nil
}

func countTokens(data []byte) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(string(data), nil, nil)), nil
}
