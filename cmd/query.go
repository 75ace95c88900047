package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mybrainlabs/recall/internal/llm"
	"github.com/mybrainlabs/recall/internal/retriever"
	"github.com/mybrainlabs/recall/internal/router"
	"github.com/mybrainlabs/recall/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the archive and print the matching excerpts",
	Long:  `Runs hybrid retrieval (full-text plus semantic) over the indexed recordings and prints the top matching excerpts.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and get an answer grounded in your recordings",
	Long:  `Retrieves the most relevant excerpts for the question, routes it to an answer model, and prints the grounded answer.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, askCmd} {
		c.Flags().String("speaker", "", "only match chunks by this speaker")
		c.Flags().String("source", "", "only match documents of this source kind")
		c.Flags().String("after", "", "only match documents created after this date (YYYY-MM-DD)")
		c.Flags().String("before", "", "only match documents created before this date (YYYY-MM-DD)")
	}
	searchCmd.Flags().Int("limit", 0, "maximum number of results (overrides config)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.Retrieval.RerankLimit
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := createEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	rt := createRetriever(cfg, st, embedder)
	res, err := rt.Retrieve(ctx, args[0], retrieveOptions(cfg, filter))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if rr := createReranker(cfg, st); rr != nil {
		res.Candidates = rr.Rerank(ctx, args[0], res.Candidates, limit)
	} else if len(res.Candidates) > limit {
		res.Candidates = res.Candidates[:limit]
	}

	if len(res.Candidates) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	if res.Degraded {
		fmt.Fprintln(os.Stderr, "Note: semantic search unavailable, results are keyword-only.")
	}

	if jsonOutput {
		return printResultsJSON(ctx, st, res.Candidates)
	}
	printResultsTable(ctx, st, res.Candidates)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := createEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	rt := createRetriever(cfg, st, embedder)
	res, err := rt.Retrieve(ctx, question, retrieveOptions(cfg, filter))
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	if rr := createReranker(cfg, st); rr != nil {
		res.Candidates = rr.Rerank(ctx, question, res.Candidates, cfg.Retrieval.RerankLimit)
	} else if len(res.Candidates) > cfg.Retrieval.RerankLimit {
		res.Candidates = res.Candidates[:cfg.Retrieval.RerankLimit]
	}

	answers := router.New(st, router.ModelPolicy{
		ReasoningModel:    cfg.Router.ReasoningModel,
		LongContextModel:  cfg.Router.LongContextModel,
		DefaultModel:      cfg.Router.DefaultModel,
		LongContextTokens: cfg.Router.LongContextTokens,
	})
	req, err := answers.Route(ctx, question, res.Candidates)
	if err != nil {
		return fmt.Errorf("routing question: %w", err)
	}
	if req.NoInformation {
		fmt.Println(router.NoInformationAnswer)
		return nil
	}

	provider, err := llm.ProviderForModel(req.Model)
	if err != nil {
		return fmt.Errorf("creating answer provider: %w", err)
	}
	if cfg.RequestsPerMinute > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RequestsPerMinute)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Routing to %s (%d context tokens, %d excerpts)\n",
			req.Model, req.ContextTokens, len(res.Candidates))
	}

	resp, err := provider.Complete(ctx, llm.CompletionRequest{
		Model: req.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: groundedAnswerPrompt},
			{Role: llm.RoleUser, Content: "Excerpts:\n\n" + req.Context + "\n\nQuestion: " + question},
		},
	})
	if err != nil {
		return fmt.Errorf("answer model %s: %w", req.Model, err)
	}

	fmt.Println(resp.Content)
	return nil
}

const groundedAnswerPrompt = `You are a personal memory assistant. Answer the user's question using only the provided excerpts from their recorded conversations, videos, and notes. Quote or reference the source material where it helps. If the excerpts do not contain the answer, say so plainly. Answer in the language of the question.`

// filterFromFlags builds a metadata filter from the shared search flags.
func filterFromFlags(cmd *cobra.Command) (*store.Filter, error) {
	filter := &store.Filter{}
	filter.Speaker, _ = cmd.Flags().GetString("speaker")
	source, _ := cmd.Flags().GetString("source")
	filter.Source = store.SourceKind(source)

	for _, f := range []struct {
		name string
		dst  *time.Time
	}{
		{"after", &filter.After},
		{"before", &filter.Before},
	} {
		raw, _ := cmd.Flags().GetString(f.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("--%s must be YYYY-MM-DD", f.name)
		}
		*f.dst = ts
	}

	if *filter == (store.Filter{}) {
		return nil, nil
	}
	return filter, nil
}

type resultJSON struct {
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Document   string  `json:"document"`
	Speaker    string  `json:"speaker,omitempty"`
	Start      float64 `json:"start,omitempty"`
	End        float64 `json:"end,omitempty"`
	Tier       string  `json:"tier"`
	Text       string  `json:"text"`
}

func printResultsJSON(ctx context.Context, st store.Store, candidates []retriever.Candidate) error {
	var out []resultJSON
	for i, c := range candidates {
		r := resultJSON{
			Rank:     i + 1,
			Score:    c.FusedScore,
			Document: docTitle(ctx, st, c.Chunk.DocumentID),
			Speaker:  c.Chunk.Speaker,
			Tier:     string(c.Chunk.Tier),
			Text:     c.Chunk.Text,
		}
		if c.Chunk.Span != nil {
			r.Start = c.Chunk.Span.Start
			r.End = c.Chunk.Span.End
		}
		out = append(out, r)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printResultsTable(ctx context.Context, st store.Store, candidates []retriever.Candidate) {
	fmt.Printf("Found %d results:\n\n", len(candidates))
	for i, c := range candidates {
		location := docTitle(ctx, st, c.Chunk.DocumentID)
		if c.Chunk.Span != nil {
			location = fmt.Sprintf("%s @ %s", location, formatSpan(*c.Chunk.Span))
		}
		if c.Chunk.Speaker != "" {
			location = fmt.Sprintf("%s (%s)", location, c.Chunk.Speaker)
		}

		fmt.Printf("  %d. [%.2f] %s\n", i+1, c.FusedScore, location)
		fmt.Printf("     %s\n\n", truncate(c.Chunk.Text, 160))
	}
}

func docTitle(ctx context.Context, st store.Store, documentID string) string {
	doc, err := st.Document(ctx, documentID)
	if err != nil {
		return documentID
	}
	return doc.Title
}

func formatSpan(s store.Span) string {
	format := func(seconds float64) string {
		total := int(seconds)
		if total >= 3600 {
			return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
		}
		return fmt.Sprintf("%d:%02d", total/60, total%60)
	}
	return format(s.Start) + "-" + format(s.End)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
