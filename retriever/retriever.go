// Package retriever finds chunks relevant to a query, degrading from
// vector similarity to a best-effort scan to keyword matching as each
// dependency fails.
package retriever

import (
	"context"
	"log/slog"
	"strings"

	"docrag/model"
	"docrag/store"
	"docrag/types"
)

type Retriever struct {
	store    store.Storer
	embedder model.EmbeddingProvider
	cfg      types.Config
	logger   *slog.Logger
}

func New(storer store.Storer, embedder model.EmbeddingProvider, cfg types.Config) *Retriever {
	return &Retriever{
		store:    storer,
		embedder: embedder,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// Retrieve returns up to MaxResults chunks for the query. The vector path
// orders by similarity descending; the keyword fallback carries no ordering
// guarantee beyond store iteration order. A nil result with nil error means
// nothing matched anywhere.
func (r *Retriever) Retrieve(ctx context.Context, query string) []types.Chunk {
	// An empty store means there is nothing to find; skip the embedding
	// call entirely.
	total, err := r.store.CountChunks(ctx)
	if err == nil && total == 0 {
		r.logger.Info("no chunks stored, skipping retrieval")
		return nil
	}
	if err != nil {
		r.logger.Warn("chunk count failed, trying keyword search", "error", err)
		return r.keywordSearch(ctx, query)
	}

	vec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, falling back to keyword search", "error", err)
		return r.keywordSearch(ctx, query)
	}

	chunks, err := r.store.SearchSimilar(ctx, vec, r.cfg.SimilarityThreshold, r.cfg.MaxResults)
	if err != nil {
		r.logger.Warn("vector search failed, falling back to keyword search", "error", err)
		return r.keywordSearch(ctx, query)
	}

	if len(chunks) == 0 {
		// Some context beats none: hand back embedded chunks unranked
		// rather than an empty result.
		r.logger.Info("no chunks above threshold, relaxing filter", "threshold", r.cfg.SimilarityThreshold)
		relaxed, err := r.store.ChunksWithEmbeddings(ctx, r.cfg.MaxResults)
		if err != nil {
			r.logger.Warn("relaxed scan failed, falling back to keyword search", "error", err)
			return r.keywordSearch(ctx, query)
		}
		if len(relaxed) == 0 {
			// Chunks stored without a vector are still reachable by
			// keyword.
			r.logger.Info("no embedded chunks stored, falling back to keyword search")
			return r.keywordSearch(ctx, query)
		}
		return relaxed
	}

	return chunks
}

// keywordSearch matches chunks containing any whitespace-separated token of
// the query, case-folded, as a substring.
func (r *Retriever) keywordSearch(ctx context.Context, query string) []types.Chunk {
	chunks, err := r.store.AllChunks(ctx)
	if err != nil {
		r.logger.Error("keyword search failed", "error", err)
		return nil
	}

	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	var matched []types.Chunk
	for _, chunk := range chunks {
		if containsAny(strings.ToLower(chunk.Text), tokens) {
			matched = append(matched, chunk)
			if len(matched) == r.cfg.MaxResults {
				break
			}
		}
	}
	r.logger.Info("keyword search finished", "tokens", len(tokens), "matched", len(matched))
	return matched
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
