// Package router turns ranked retrieval candidates into an answer-model
// request: it assembles the context window, estimates its size, and picks
// the model tier the question calls for.
package router

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mybrainlabs/recall/internal/retriever"
	"github.com/mybrainlabs/recall/internal/store"
)

// ModelPolicy names the models each routing outcome maps to. All fields
// are configuration; the routing rules themselves are fixed.
type ModelPolicy struct {
	// ReasoningModel handles analysis-heavy questions.
	ReasoningModel string

	// LongContextModel handles requests whose assembled context exceeds
	// LongContextTokens.
	LongContextModel string

	// DefaultModel handles everything else.
	DefaultModel string

	// LongContextTokens is the context size threshold, in estimated tokens.
	LongContextTokens int
}

// DefaultModelPolicy returns the stock routing table.
func DefaultModelPolicy() ModelPolicy {
	return ModelPolicy{
		ReasoningModel:    "o3",
		LongContextModel:  "gpt-4o",
		DefaultModel:      "claude-sonnet-4-20250514",
		LongContextTokens: 50000,
	}
}

// NoInformationAnswer is returned verbatim when retrieval produced nothing
// to ground an answer on. No model is invoked in that case.
const NoInformationAnswer = "I could not find anything in your recordings that answers this question."

// Request is a fully prepared answer-model invocation.
type Request struct {
	Model         string
	Query         string
	Context       string
	ContextTokens int

	// Reasoning is set when the query matched the analysis heuristics.
	Reasoning bool

	// NoInformation is set when there were no candidates; Context is empty
	// and the caller should answer with NoInformationAnswer instead of
	// calling a model.
	NoInformation bool
}

// Router assembles context from a store and routes to a model per policy.
type Router struct {
	store  store.Store
	policy ModelPolicy
}

// New creates a Router. A zero policy falls back to the defaults.
func New(st store.Store, policy ModelPolicy) *Router {
	if policy == (ModelPolicy{}) {
		policy = DefaultModelPolicy()
	}
	return &Router{store: st, policy: policy}
}

// Route builds the model request for a query and its ranked candidates.
func (r *Router) Route(ctx context.Context, query string, candidates []retriever.Candidate) (*Request, error) {
	if len(candidates) == 0 {
		return &Request{Query: query, NoInformation: true}, nil
	}

	assembled, err := r.assembleContext(ctx, candidates)
	if err != nil {
		return nil, err
	}
	tokens := estimateTokens(assembled)

	req := &Request{
		Query:         query,
		Context:       assembled,
		ContextTokens: tokens,
		Reasoning:     needsReasoning(query),
	}

	switch {
	case req.Reasoning:
		req.Model = r.policy.ReasoningModel
	case tokens > r.policy.LongContextTokens:
		req.Model = r.policy.LongContextModel
	default:
		req.Model = r.policy.DefaultModel
	}
	return req, nil
}

// assembleContext concatenates candidate excerpts in rank order. A
// candidate marked for full content pulls in its whole document instead,
// once per document, and suppresses that document's other excerpts.
func (r *Router) assembleContext(ctx context.Context, candidates []retriever.Candidate) (string, error) {
	fullDocs := make(map[string]bool)
	for _, c := range candidates {
		if c.UseFullContent {
			fullDocs[c.Chunk.DocumentID] = true
		}
	}

	var sb strings.Builder
	emittedFull := make(map[string]bool)
	for _, c := range candidates {
		docID := c.Chunk.DocumentID
		if fullDocs[docID] {
			if emittedFull[docID] {
				continue
			}
			emittedFull[docID] = true

			doc, err := r.store.Document(ctx, docID)
			if err != nil {
				return "", fmt.Errorf("loading document %s for full context: %w", docID, err)
			}
			writeSection(&sb, doc.Title, "", doc.FullText)
			continue
		}

		title := ""
		if doc, err := r.store.Document(ctx, docID); err == nil {
			title = doc.Title
		} else {
			log.Printf("Failed to load document %s for context header: %v", docID, err)
		}
		writeSection(&sb, title, excerptHeader(c.Chunk), c.Chunk.Text)
	}
	return sb.String(), nil
}

func writeSection(sb *strings.Builder, title, detail, body string) {
	if sb.Len() > 0 {
		sb.WriteString("\n\n---\n\n")
	}
	if title != "" {
		sb.WriteString("Source: ")
		sb.WriteString(title)
		if detail != "" {
			sb.WriteString(" (")
			sb.WriteString(detail)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(body)
}

func excerptHeader(c store.Chunk) string {
	var parts []string
	if c.Speaker != "" {
		parts = append(parts, c.Speaker)
	}
	if c.Span != nil {
		parts = append(parts, fmt.Sprintf("%s-%s", formatOffset(c.Span.Start), formatOffset(c.Span.End)))
	}
	return strings.Join(parts, ", ")
}

func formatOffset(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// estimateTokens uses the same 4-chars-per-token heuristic the chunker
// budgets with, so routing thresholds and chunk budgets agree.
func estimateTokens(text string) int {
	return len(text) / 4
}

// Analysis verbs and question forms that benefit from a reasoning model.
var reasoningKeywords = []string{
	"analysiere", "analyze", "analyse",
	"erkläre", "explain",
	"warum", "why",
	"strategie", "strategy",
	"vergleiche", "compare",
	"bewerte", "evaluate",
}

func needsReasoning(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range reasoningKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
