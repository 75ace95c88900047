package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mybrainlabs/recall/internal/chunker"
	"github.com/mybrainlabs/recall/internal/ingest"
	"github.com/mybrainlabs/recall/internal/progress"
	"github.com/mybrainlabs/recall/internal/scan"
	"github.com/mybrainlabs/recall/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index transcripts from a directory into the archive",
	Long: `Scans a directory for transcript files (.txt, .md, .srt, .vtt),
chunks each one into the summary/topic/detail hierarchy, embeds the
chunks, and stores everything in the local index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().Int("concurrency", 0, "max parallel documents (overrides config)")
	ingestCmd.Flags().StringSlice("include", nil, "glob patterns for files to ingest")
	ingestCmd.Flags().String("source", "", "force source kind: conversation, video, note")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	start := time.Now()
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = cfg.Ingest.Concurrency
	}
	include, _ := cmd.Flags().GetStringSlice("include")
	forcedSource, _ := cmd.Flags().GetString("source")
	if forcedSource != "" {
		switch store.SourceKind(forcedSource) {
		case store.SourceConversation, store.SourceVideo, store.SourceNote:
		default:
			return fmt.Errorf("unknown source kind %q", forcedSource)
		}
	}

	rootDir := "."
	if len(args) == 1 {
		rootDir = args[0]
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Scanning %s for transcripts...\n", rootDir)
	}
	files, err := scan.Scan(scan.Config{
		RootDir: rootDir,
		Include: include,
		Exclude: cfg.Ingest.Exclude,
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", rootDir, err)
	}
	if len(files) == 0 {
		fmt.Println("No transcript files found.")
		return nil
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Found %d transcript files\n", len(files))
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

	pipeline := ingest.NewPipeline(
		chunker.New(chunker.Options{}),
		embedder,
		createTokenEmbedder(cfg),
		st,
		ingest.Options{
			MaxTokenChunks:      cfg.Ingest.MaxTokenChunks,
			TokenChunkMaxTokens: cfg.Ingest.TokenChunkMaxTokens,
		},
	)

	jobs := make([]ingest.Job, 0, len(files))
	for _, f := range files {
		job, err := jobFromFile(f, forcedSource)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", f.RelPath, err)
			continue
		}
		jobs = append(jobs, job)
	}

	reporter := progress.NewReporter()
	reporter.Start(len(jobs))
	batcher := ingest.NewBatcher(concurrency, pipeline, func(done, total int, documentID string) {
		reporter.Update(done, documentID)
	})
	result := batcher.Process(ctx, jobs)
	reporter.Finish()

	chunks := 0
	pending := 0
	tokenIndexed := 0
	for _, r := range result.Results {
		chunks += r.Chunks
		tokenIndexed += r.TokenIndexed
		if r.VectorPending {
			pending++
		}
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents indexed: %d\n", len(result.Results))
	fmt.Printf("  Chunks stored:     %d\n", chunks)
	if tokenIndexed > 0 {
		fmt.Printf("  Token-indexed:     %d chunks\n", tokenIndexed)
	}
	if pending > 0 {
		fmt.Printf("  Vector-pending:    %d documents (embedder unavailable)\n", pending)
	}
	fmt.Printf("  Duration:          %s\n", time.Since(start).Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "\nFailed documents (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
	}
	return nil
}

// jobFromFile reads one transcript file and prepares its ingestion job.
// Structured speaker/timestamp lines are parsed when present; plain prose
// falls back to sentence splitting inside the chunker.
func jobFromFile(f scan.FileInfo, forcedSource string) (ingest.Job, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return ingest.Job{}, err
	}
	text := string(data)

	utterances := chunker.ParseTranscript(text)
	duration := 0.0
	for _, u := range utterances {
		if u.End > duration {
			duration = u.End
		}
	}

	source := f.Source
	if forcedSource != "" {
		source = store.SourceKind(forcedSource)
	}

	doc := store.Document{
		ID:        uuid.New().String(),
		Title:     f.Title,
		Source:    source,
		CreatedAt: f.ModTime,
	}
	return ingest.Job{
		Document: doc,
		Transcript: chunker.Transcript{
			Text:       text,
			Utterances: utterances,
			Duration:   duration,
		},
	}, nil
}
