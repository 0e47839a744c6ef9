package result

import (
	"time"

	"github.com/google/uuid"

	"github.com/kmarsh/promptarena/internal/runner"
)

// RunRecord is the persisted form of one fan-out run.
type RunRecord struct {
	ID          string         `json:"id"`
	StartedAt   time.Time      `json:"started_at"`
	Prompt      string         `json:"prompt"`
	Concurrency int            `json:"concurrency"`
	Results     []TargetResult `json:"results"`
	Summary     RunSummary     `json:"summary"`
}

// TargetResult mirrors runner.Result in stable JSON form.
type TargetResult struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	DisplayName  string  `json:"display_name,omitempty"`
	Response     string  `json:"response,omitempty"`
	Error        string  `json:"error,omitempty"`
	LatencyMs    int64   `json:"latency_ms"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

type RunSummary struct {
	Total        int     `json:"total"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int     `json:"total_tokens"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// NewRunRecord converts a settled run into its persisted form.
func NewRunRecord(prompt string, concurrency int, results []runner.Result, sum runner.Summary) *RunRecord {
	rec := &RunRecord{
		ID:          uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Prompt:      prompt,
		Concurrency: concurrency,
		Results:     make([]TargetResult, 0, len(results)),
		Summary: RunSummary{
			Total:        sum.Total,
			Succeeded:    sum.Succeeded,
			Failed:       sum.Failed,
			TotalCostUSD: sum.TotalCostUSD,
			TotalTokens:  sum.TotalTokens,
			AvgLatencyMs: sum.AvgLatencyMs,
		},
	}
	for _, r := range results {
		rec.Results = append(rec.Results, TargetResult{
			Provider:     r.Target.Provider,
			Model:        r.Target.Model,
			DisplayName:  r.Target.DisplayName,
			Response:     r.Response,
			Error:        r.Err,
			LatencyMs:    r.LatencyMs,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			TotalTokens:  r.TotalTokens,
			CostUSD:      r.CostUSD,
		})
	}
	return rec
}
