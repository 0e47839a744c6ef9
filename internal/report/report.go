package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/kmarsh/promptarena/internal/result"
)

// TargetSummary aggregates every stored run's results for one
// provider/model pair.
type TargetSummary struct {
	Target        string  `json:"target"`
	Requests      int     `json:"requests"`
	SuccessRate   float64 `json:"success_rate"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	MeanTokens    float64 `json:"mean_tokens"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
}

// Generate reads stored run records under runDir and writes a summary in
// the requested format.
func Generate(runDir, format string, w io.Writer) error {
	records, err := result.CollectRecords(runDir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no run records found in %s", runDir)
	}

	summaries := aggregate(records)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func aggregate(records []*result.RunRecord) []TargetSummary {
	type accum struct {
		count      int
		succeeded  int
		latencySum float64
		latencyN   int
		tokens     float64
		cost       float64
	}
	byTarget := map[string]*accum{}

	for _, rec := range records {
		for _, r := range rec.Results {
			key := r.Provider + "/" + r.Model
			a, ok := byTarget[key]
			if !ok {
				a = &accum{}
				byTarget[key] = a
			}
			a.count++
			a.tokens += float64(r.TotalTokens)
			a.cost += r.CostUSD
			if r.Error == "" {
				a.succeeded++
			}
			if r.Error != "canceled" || r.LatencyMs > 0 {
				a.latencySum += float64(r.LatencyMs)
				a.latencyN++
			}
		}
	}

	var summaries []TargetSummary
	for key, a := range byTarget {
		s := TargetSummary{
			Target:       key,
			Requests:     a.count,
			SuccessRate:  float64(a.succeeded) / float64(a.count),
			MeanTokens:   a.tokens / float64(a.count),
			TotalCostUSD: a.cost,
		}
		if a.latencyN > 0 {
			s.MeanLatencyMs = a.latencySum / float64(a.latencyN)
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Target < summaries[j].Target
	})
	return summaries
}

func writeTable(summaries []TargetSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tREQUESTS\tSUCCESS\tMEAN LATENCY\tMEAN TOKENS\tTOTAL COST")
	fmt.Fprintln(tw, strings.Repeat("-", 80))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.0fms\t%.0f\t$%.4f\n",
			s.Target, s.Requests, s.SuccessRate*100, s.MeanLatencyMs, s.MeanTokens, s.TotalCostUSD)
	}
	return tw.Flush()
}

func writeMarkdown(summaries []TargetSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Target | Requests | Success | Mean Latency | Mean Tokens | Total Cost |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %.0fms | %.0f | $%.4f |\n",
			s.Target, s.Requests, s.SuccessRate*100, s.MeanLatencyMs, s.MeanTokens, s.TotalCostUSD)
	}
	return nil
}

func writeJSON(summaries []TargetSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
