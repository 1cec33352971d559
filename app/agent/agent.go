// Package agent orchestrates the answer pipeline: intent analysis, context
// retrieval and generation, with a deterministic fallback behind every
// external dependency. A query always completes with an answer and a
// processing time, whatever fails along the way.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docrag/model"
	"docrag/retriever"
	"docrag/store"
	"docrag/types"
)

type Agent struct {
	store     store.Storer
	retriever *retriever.Retriever
	generator model.Generator
	intent    *IntentAnalyzer
	logger    *slog.Logger
}

func New(storer store.Storer, retr *retriever.Retriever, generator model.Generator) *Agent {
	return &Agent{
		store:     storer,
		retriever: retr,
		generator: generator,
		intent:    NewIntentAnalyzer(generator),
		logger:    slog.Default(),
	}
}

const apologyAnswer = "Sorry, I encountered an error while processing your question. Please try again."

// ProcessQuery answers a question and records the outcome. It never
// returns an error: internal failures degrade to deterministic answers.
func (a *Agent) ProcessQuery(ctx context.Context, question string) *types.QueryOutcome {
	a.logger.Info("processing query", "question", question)
	start := time.Now()

	answer, cited := a.answer(ctx, question)

	outcome := &types.QueryOutcome{
		Question:          question,
		Answer:            answer,
		RelevantDocuments: cited,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
		QueryDate:         time.Now(),
	}
	if err := a.store.SaveQuery(ctx, outcome); err != nil {
		a.logger.Error("failed to persist query outcome", "error", err)
	}

	a.logger.Info("query processed", "took_ms", outcome.ProcessingTimeMs)
	return outcome
}

func (a *Agent) answer(ctx context.Context, question string) (answer, cited string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("query pipeline panicked", "panic", r)
			answer, cited = apologyAnswer, ""
		}
	}()

	analysis := a.intent.Analyze(ctx, question)

	// Explicit references win over everything, including a classifier
	// that said no search is needed.
	if analysis.HasDocumentRefs() {
		docs, err := a.store.FindDocumentsByRefs(ctx, analysis.DocumentIDs, analysis.DocumentNames)
		if err != nil {
			a.logger.Warn("document reference lookup failed", "error", err)
		}
		if len(docs) > 0 {
			return a.answerFromDocuments(ctx, question, docs)
		}
		a.logger.Info("referenced documents not found, falling through to retrieval",
			"ids", analysis.DocumentIDs, "names", analysis.DocumentNames)
		return a.answerFromRetrieval(ctx, question, analysis)
	}

	if !analysis.NeedsDocumentSearch {
		return a.answerGeneral(ctx, question), ""
	}

	return a.answerFromRetrieval(ctx, question, analysis)
}

const documentPrompt = `Based on the complete content of the multiple documents, please answer the following question:

QUESTION: %s

COMPLETE DOCUMENT CONTENT:
%s

INSTRUCTIONS:
- Provide a comprehensive answer based on the entire document content
- If the document doesn't contain information to answer the question, state this clearly
- Reference specific sections or parts of the document when relevant
- Be thorough but concise in your response`

// answerFromDocuments prompts with the full extracted text of every
// resolved document, separated by a visible divider.
func (a *Agent) answerFromDocuments(ctx context.Context, question string, docs []types.Document) (string, string) {
	names := make([]string, len(docs))
	contents := make([]string, len(docs))
	for i, doc := range docs {
		names[i] = doc.Filename
		contents[i] = doc.ExtractedText
	}
	cited := strings.Join(names, ", ")

	a.logger.Info("answering from complete documents", "documents", cited)

	prompt := fmt.Sprintf(documentPrompt, question, strings.Join(contents, "\n\n---\n\n"))
	answer, err := a.generator.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		a.logger.Warn("document analysis generation failed", "error", err)
		return "I encountered an error while analyzing the complete documents. Please try again or rephrase your question.", cited
	}
	return strings.TrimSpace(answer), cited
}

const generalPrompt = `Answer this general knowledge question:

Question: %s

Instructions:
- Provide a helpful and accurate answer
- This question doesn't require searching through specific documents
- Use your general knowledge to provide a comprehensive response

Answer:`

func (a *Agent) answerGeneral(ctx context.Context, question string) string {
	answer, err := a.generator.Generate(ctx, fmt.Sprintf(generalPrompt, question))
	if err != nil {
		a.logger.Warn("general knowledge generation failed", "error", err)
		return "I can help with general questions, but I encountered an error processing your question."
	}
	if strings.TrimSpace(answer) == "" {
		return "I can help with general questions, but I don't have enough information to answer this specific question."
	}
	return strings.TrimSpace(answer)
}

const contextPrompt = `You are a helpful assistant that answers questions based on the provided context from uploaded documents.

Search Analysis:
- Search terms used: %s
- Question type: %s

Context from documents:
%s

User Question: %s

Instructions:
- Answer the question based primarily on the information provided in the context above
- The context was found by searching for: "%s"
- If the context doesn't fully answer the question, clearly state what information is available and what is missing
- Be specific and reference relevant parts of the context when possible
- If you need to make reasonable inferences, clearly indicate this
- Do not make up information that is not supported by the context

Answer:`

func (a *Agent) answerFromRetrieval(ctx context.Context, question string, analysis types.IntentAnalysis) (string, string) {
	chunks := a.retriever.Retrieve(ctx, analysis.SearchQuery)
	if len(chunks) == 0 {
		// Terminal path: no generation call on empty context.
		a.logger.Info("no relevant chunks found", "search_query", analysis.SearchQuery)
		return notFoundAnswer(analysis.SearchQuery), ""
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	context := strings.TrimSpace(strings.Join(texts, "\n\n"))

	cited := relevantDocumentNames(chunks)

	prompt := fmt.Sprintf(contextPrompt, analysis.SearchQuery, analysis.QuestionType, context, question, analysis.SearchQuery)
	answer, err := a.generator.Generate(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		a.logger.Warn("context generation failed, using chunk summary", "error", err)
		return summaryAnswer(chunks), cited
	}
	return strings.TrimSpace(answer), cited
}

func notFoundAnswer(searchQuery string) string {
	return fmt.Sprintf(`I searched for information about "%s" in the uploaded documents but couldn't find any relevant content.

This could mean:
- The documents don't contain information about this topic
- Try rephrasing your question with different keywords
- Make sure you've uploaded documents that relate to your question

You can also:
- Ask me general knowledge questions that don't require document search`, searchQuery)
}

// summaryAnswer lists the first retrieved chunks verbatim when the model
// cannot produce an answer.
func summaryAnswer(chunks []types.Chunk) string {
	var sb strings.Builder
	sb.WriteString("Based on the uploaded documents, here's what I found:\n\n")

	shown := len(chunks)
	if shown > 3 {
		shown = 3
	}
	for i := 0; i < shown; i++ {
		sb.WriteString("• ")
		sb.WriteString(truncateText(chunks[i].Text, 200))
		sb.WriteString("\n\n")
	}
	if len(chunks) > shown {
		sb.WriteString(fmt.Sprintf("... and %d more relevant sections found.", len(chunks)-shown))
	}
	return sb.String()
}

func relevantDocumentNames(chunks []types.Chunk) string {
	seen := make(map[string]bool)
	var names []string
	for _, chunk := range chunks {
		if chunk.DocumentName == "" || seen[chunk.DocumentName] {
			continue
		}
		seen[chunk.DocumentName] = true
		names = append(names, chunk.DocumentName)
	}
	return strings.Join(names, ", ")
}

func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
