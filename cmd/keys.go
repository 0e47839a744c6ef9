package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/kmarsh/promptarena/internal/probe"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Test connectivity and API keys for every configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cat, err := loadEnvironment()
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			reg := buildRegistry(cfg, logger)
			targets := probe.FirstPerProvider(buildTargets(cfg, cat))

			fmt.Printf("Probing %d providers...\n", len(targets))
			statuses, err := probe.Run(context.Background(), reg.SendFunc(), targets)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL\tSTATUS\tLATENCY")
			failures := 0
			for _, s := range statuses {
				if s.OK {
					fmt.Fprintf(tw, "%s\t%s\tok\t%dms\n", s.Provider, s.Model, s.LatencyMs)
				} else {
					failures++
					fmt.Fprintf(tw, "%s\t%s\tFAIL: %s\t\n", s.Provider, s.Model, s.Err)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d providers failed", failures, len(statuses))
			}
			return nil
		},
	}
}
