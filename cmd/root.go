package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Searchable memory for your recorded conversations, videos, and notes",
	Long: `Recall ingests long-form personal recordings — meeting transcripts,
video captions, voice notes — into a local hybrid index and answers
questions against them. Retrieval combines full-text and semantic
search; answers are grounded in the retrieved excerpts.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".recall.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
