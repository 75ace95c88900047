package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mybrainlabs/recall/internal/llm"
	"github.com/mybrainlabs/recall/internal/router"
	"github.com/mybrainlabs/recall/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recall HTTP server",
	Long:  `Starts the recall server with the JSON search API, document management endpoints, and the WebSocket chat interface.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
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
		rr := createReranker(cfg, st)
		answers := router.New(st, router.ModelPolicy{
			ReasoningModel:    cfg.Router.ReasoningModel,
			LongContextModel:  cfg.Router.LongContextModel,
			DefaultModel:      cfg.Router.DefaultModel,
			LongContextTokens: cfg.Router.LongContextTokens,
		})

		providers := func(model string) (llm.Provider, error) {
			p, err := llm.ProviderForModel(model)
			if err != nil {
				return nil, err
			}
			if cfg.RequestsPerMinute > 0 {
				p = llm.NewRateLimitedProvider(p, cfg.RequestsPerMinute)
			}
			return p, nil
		}

		port := servePort
		if port <= 0 {
			port = cfg.Server.Port
		}
		srv := server.New(server.Config{
			Port:           port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RetrieveLimit:  cfg.Retrieval.Limit,
			RerankLimit:    cfg.Retrieval.RerankLimit,
		}, st, rt, rr, answers, providers)

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		docs, err := st.Documents(context.Background())
		if err == nil {
			fmt.Fprintf(os.Stderr, "recall server v%s starting on port %d (%d documents indexed)\n",
				Version, port, len(docs))
		}

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
