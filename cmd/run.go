package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kmarsh/promptarena/internal/result"
	"github.com/kmarsh/promptarena/internal/runner"
	"github.com/spf13/cobra"
)

var (
	flagPrompt     string
	flagPromptFile string
	flagTargets    []string
	flagParallel   int
	flagTimeout    int
	flagNoSave     bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fan a prompt out to the configured targets",
		RunE:  runFanout,
	}
	cmd.Flags().StringVar(&flagPrompt, "prompt", "", "prompt text")
	cmd.Flags().StringVar(&flagPromptFile, "prompt-file", "", "read the prompt from a file")
	cmd.Flags().StringSliceVar(&flagTargets, "target", nil, "filter targets (provider, model, or provider/model; repeatable)")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "max concurrent requests (overrides config)")
	cmd.Flags().IntVar(&flagTimeout, "timeout", 0, "per-request timeout in seconds (overrides config)")
	cmd.Flags().BoolVar(&flagNoSave, "no-save", false, "do not persist the run record")
	return cmd
}

func runFanout(cmd *cobra.Command, args []string) error {
	cfg, cat, err := loadEnvironment()
	if err != nil {
		return err
	}

	prompt, err := resolvePrompt()
	if err != nil {
		return err
	}

	targets := filterTargets(buildTargets(cfg, cat), flagTargets)
	if len(targets) == 0 {
		return fmt.Errorf("no targets match %v", flagTargets)
	}

	concurrency := cfg.Defaults.Concurrency
	if flagParallel > 0 {
		concurrency = flagParallel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	reg := buildRegistry(cfg, logger)

	// Ctrl-C stops new batches; in-flight requests drain.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := runner.New(reg.SendFunc(),
		runner.WithTimeout(timeoutFromFlags(cfg, flagTimeout)),
		runner.WithProgress(func(s runner.Summary) {
			fmt.Printf("  [%d/%d] %d ok, %d failed\n", s.Total, len(targets), s.Succeeded, s.Failed)
		}),
	)

	fmt.Printf("Sending prompt to %d targets (concurrency %d)...\n", len(targets), concurrency)
	results, sum, err := r.Run(ctx, &runner.Request{
		Prompt:      prompt,
		Targets:     targets,
		Concurrency: concurrency,
	})
	if err != nil {
		return err
	}

	fmt.Println("\n--- Results ---")
	for _, res := range results {
		if res.OK() {
			fmt.Printf("  %-40s %6dms  %5d tokens  $%.4f\n",
				res.Target.Name(), res.LatencyMs, res.TotalTokens, res.CostUSD)
		} else {
			fmt.Printf("  %-40s ERROR: %s\n", res.Target.Name(), res.Err)
		}
	}
	fmt.Printf("\n%d/%d succeeded, %d tokens, $%.4f total, %.0fms avg latency\n",
		sum.Succeeded, sum.Total, sum.TotalTokens, sum.TotalCostUSD, sum.AvgLatencyMs)

	if flagNoSave {
		return nil
	}
	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	rec := result.NewRunRecord(prompt, concurrency, results, sum)
	if err := result.WriteRecord(runDir, rec); err != nil {
		return err
	}
	fmt.Printf("Run %s saved to %s\n", rec.ID, runDir)
	return nil
}

func resolvePrompt() (string, error) {
	if flagPrompt != "" && flagPromptFile != "" {
		return "", fmt.Errorf("--prompt and --prompt-file are mutually exclusive")
	}
	if flagPromptFile != "" {
		data, err := os.ReadFile(flagPromptFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	return flagPrompt, nil
}
