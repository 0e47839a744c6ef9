package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalog with pricing and context windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := loadEnvironment()
			if err != nil {
				return err
			}
			entries := cat.Entries()
			if len(entries) == 0 {
				fmt.Println("catalog is empty")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tINPUT $/1M\tOUTPUT $/1M")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t$%.2f\t$%.2f\n",
					e.Provider, e.Model, e.Info.ContextWindow, e.Info.InputPer1M, e.Info.OutputPer1M)
			}
			return tw.Flush()
		},
	}
}
