package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "promptarena",
		Short: "Fan prompts out to multiple LLM providers and compare the results",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "promptarena.yaml", "config file path")
	root.AddCommand(newRunCmd())
	root.AddCommand(newCompareCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newReportCmd())
	return root
}
