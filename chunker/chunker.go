// Package chunker splits extracted document text into overlapping,
// boundary-aware segments sized for embedding.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"docrag/types"
)

// Split cuts text into windows of at most cfg.ChunkSize bytes, advancing
// by chunkSize-overlap (never less than one rune) and refining each
// window's end to the nearest natural boundary. Cuts never land inside a
// multi-byte rune. It never produces more than cfg.MaxChunksPerDocument
// chunks.
func Split(text string, cfg types.Config) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if len(clean) <= cfg.ChunkSize {
		return []string{clean}
	}

	var chunks []string
	start := 0
	for start < len(clean) && len(chunks) < cfg.MaxChunksPerDocument {
		end := start + cfg.ChunkSize
		if end > len(clean) {
			end = len(clean)
		} else {
			for end > start && !utf8.RuneStart(clean[end]) {
				end--
			}
			end = findBreak(clean, start, end)
		}

		chunk := strings.TrimSpace(clean[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Advance at least one rune so the loop always terminates.
		next := end - cfg.ChunkOverlap
		if next <= start {
			_, size := utf8.DecodeRuneInString(clean[start:])
			next = start + size
		}
		for next < len(clean) && !utf8.RuneStart(clean[next]) {
			next++
		}
		start = next
	}
	return chunks
}

// findBreak searches backward from the proposed end for a natural cut
// point: a paragraph break, then a sentence terminator followed by
// whitespace, then a newline, then any whitespace. Falls back to the raw
// window end.
func findBreak(text string, start, end int) int {
	if p := strings.LastIndex(text[:end], "\n\n"); p > start {
		return p + 2
	}

	for i := end - 1; i > start; i-- {
		c := text[i]
		if c == '.' || c == '!' || c == '?' {
			if i+1 < len(text) && isSpace(text[i+1]) {
				return i + 1
			}
		}
	}

	if p := strings.LastIndexByte(text[:end], '\n'); p > start {
		return p + 1
	}

	for i := end - 1; i > start; i-- {
		if isSpace(text[i]) {
			return i + 1
		}
	}

	return end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// IsValidChunk rejects fragments too short to retrieve meaningfully and
// fragments that are mostly numbers or symbols, such as table rows.
func IsValidChunk(chunk string) bool {
	trimmed := strings.TrimSpace(chunk)
	if utf8.RuneCountInString(trimmed) < 20 {
		return false
	}

	letters := 0
	total := 0
	for _, r := range trimmed {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return float64(letters)/float64(total) >= 0.3
}
