package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mybrainlabs/recall/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize recall configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure recall and generates a .recall.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
