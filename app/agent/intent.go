package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"docrag/model"
	"docrag/types"
)

// IntentAnalyzer asks the generation model to classify a question and
// extract explicit document references. The model is a best-effort
// classifier: its output is parsed defensively and every failure lands on
// a deterministic rule-based analysis.
type IntentAnalyzer struct {
	generator model.Generator
	logger    *slog.Logger
}

func NewIntentAnalyzer(generator model.Generator) *IntentAnalyzer {
	return &IntentAnalyzer{
		generator: generator,
		logger:    slog.Default(),
	}
}

const intentPrompt = `Analyze this user question and determine the search strategy:

Question: %s

Carefully examine the question for:

**Document References:**
- Explicit document IDs (e.g., "document ID 12", "doc 5", "file #3")
- Document names/filenames (e.g., "resume.pdf", "contract.docx", "financial_report_2024.xlsx")
- Implicit document references (e.g., "the resume", "my contract", "the report I uploaded")
- Multiple document references (e.g., "compare documents 1 and 3", "all PDFs")

**Search Requirements:**
- Does the question require reading/analyzing uploaded documents?
- What specific information needs to be extracted from documents?
- Are there keywords that would help locate relevant content?

**Question Classification:**
- Document-specific: Requires specific uploaded documents
- General-knowledge: Can be answered without documents
- Mixed: Combines document analysis with general knowledge

**Instructions:**
1. Extract ALL document IDs mentioned (numbers only, as integers)
2. Extract ALL document names/filenames mentioned (exact strings)
3. For implicit references, leave arrays empty but set needs_document_search to true
4. Create comprehensive search terms including synonyms and related concepts
5. Be precise about question type classification

Respond in this exact JSON format:
{
    "needs_document_search": true/false,
    "document_ids": [list of integers only, e.g., [1, 12, 5]],
    "document_names": ["exact filenames mentioned", "case-sensitive"],
    "search_query": "comprehensive keywords including synonyms and related terms",
    "question_type": "document-specific|general-knowledge|mixed",
    "reasoning": "detailed explanation of document references found and why search is/isn't needed"
}

**Examples:**
- "Analyze document ID 12 and Profile.pdf" -> document_ids: [12], document_names: ["Profile.pdf"]
- "What does the resume say about experience?" -> document_ids: [], document_names: [], but needs_document_search: true
- "Compare files 1, 3, and resume.docx" -> document_ids: [1, 3], document_names: ["resume.docx"]
- "What is machine learning?" -> needs_document_search: false
- "Based on the uploaded contract, what are the terms?" -> document_ids: [], document_names: [], needs_document_search: true`

// Analyze never fails: classifier or parse errors degrade to the
// rule-based fallback analysis.
func (a *IntentAnalyzer) Analyze(ctx context.Context, question string) types.IntentAnalysis {
	raw, err := a.generator.Generate(ctx, fmt.Sprintf(intentPrompt, question))
	if err != nil {
		a.logger.Warn("intent classification failed, using fallback", "error", err)
		return fallbackAnalysis(question)
	}

	analysis, err := parseIntent(raw, question)
	if err != nil {
		a.logger.Warn("intent response unparseable, using fallback", "error", err, "payload", truncateForLog(raw))
		return fallbackAnalysis(question)
	}
	return analysis
}

func parseIntent(raw, question string) (types.IntentAnalysis, error) {
	span, err := extractJSON(raw)
	if err != nil {
		return types.IntentAnalysis{}, err
	}

	var analysis types.IntentAnalysis
	if err := json.Unmarshal([]byte(span), &analysis); err != nil {
		return types.IntentAnalysis{}, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}

	if strings.TrimSpace(analysis.SearchQuery) == "" {
		analysis.SearchQuery = ExtractKeywords(question)
	}
	if strings.TrimSpace(analysis.QuestionType) == "" {
		analysis.QuestionType = types.QuestionTypeMixed
	}
	if strings.TrimSpace(analysis.Reasoning) == "" {
		analysis.Reasoning = "model analysis"
	}
	return analysis, nil
}

// extractJSON trusts only the bracketed span of the model output: from the
// first opening bracket to the last closer of the same kind. Models often
// wrap JSON in prose.
func extractJSON(s string) (string, error) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON in output", model.ErrMalformedResponse)
	}

	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", fmt.Errorf("%w: unterminated JSON in output", model.ErrMalformedResponse)
	}
	return s[start : end+1], nil
}

func fallbackAnalysis(question string) types.IntentAnalysis {
	return types.IntentAnalysis{
		NeedsDocumentSearch: true,
		SearchQuery:         ExtractKeywords(question),
		QuestionType:        types.QuestionTypeMixed,
		Reasoning:           "fallback analysis",
	}
}

var (
	questionWordsRe = regexp.MustCompile(`\b(what|how|when|where|why|who|can|could|would|should|please|tell|show|explain|describe|based on|from the|in the|documents?|files?)\b`)
	stopWordsRe     = regexp.MustCompile(`\b(the|a|and|or|but|in|on|at|to|for|of|with|by|is|are|was|were)\b`)
	nonWordRe       = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	spacesRe        = regexp.MustCompile(`\s+`)
)

// ExtractKeywords is the deterministic backstop for search terms: the
// question lowercased, stripped of question words, stop words and
// punctuation.
func ExtractKeywords(question string) string {
	s := strings.ToLower(question)
	s = questionWordsRe.ReplaceAllString(s, "")
	s = stopWordsRe.ReplaceAllString(s, "")
	s = nonWordRe.ReplaceAllString(s, " ")
	s = spacesRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		// All stop words; better to search the raw question than nothing.
		s = strings.TrimSpace(strings.ToLower(question))
	}
	return s
}

func truncateForLog(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
