package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/kmarsh/promptarena/internal/compare"
	"github.com/kmarsh/promptarena/internal/runner"
	"github.com/spf13/cobra"
)

var (
	flagComparePrompt string
	flagTrials        int
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <target-a> <target-b>",
		Short: "A/B the same prompt against two targets",
		Long:  "Send the same prompt to two targets N times each and report latency, token, and cost aggregates side by side. Targets are provider/model keys from the config.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cat, err := loadEnvironment()
			if err != nil {
				return err
			}

			targets := buildTargets(cfg, cat)
			a, ok := findTarget(targets, args[0])
			if !ok {
				return fmt.Errorf("target %q not found in config", args[0])
			}
			b, ok := findTarget(targets, args[1])
			if !ok {
				return fmt.Errorf("target %q not found in config", args[1])
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			reg := buildRegistry(cfg, logger)

			fmt.Printf("Comparing %s vs %s (%d trials each)...\n", a.Name(), b.Name(), flagTrials)
			cmp, err := compare.Run(context.Background(), reg.SendFunc(), a, b, flagComparePrompt, flagTrials,
				runner.WithTimeout(timeoutFromFlags(cfg, flagTimeout)))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tTRIALS\tOK\tFAILED\tMEAN LATENCY\tMEAN TOKENS\tTOTAL COST")
			printSide(tw, cmp.A)
			printSide(tw, cmp.B)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&flagComparePrompt, "prompt", "", "prompt text")
	cmd.Flags().IntVar(&flagTrials, "trials", 3, "trials per side")
	cmd.Flags().IntVar(&flagTimeout, "timeout", 0, "per-request timeout in seconds (overrides config)")
	return cmd
}

func printSide(tw *tabwriter.Writer, s compare.Side) {
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.0fms\t%.0f\t$%.4f\n",
		s.Target.Name(), s.Trials, s.Succeeded, s.Failed, s.MeanLatencyMs, s.MeanTokens, s.TotalCostUSD)
}
