//go:build integration

package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kmarsh/promptarena/cmd"
	"github.com/kmarsh/promptarena/internal/result"
)

// startStubProvider serves a fixed OpenAI-compatible completion.
func startStubProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "stub response"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 9}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeFixtures(t *testing.T, baseURL string) (cfgPath, resultsDir string) {
	t.Helper()
	dir := t.TempDir()
	resultsDir = filepath.Join(dir, "results")

	catalogPath := filepath.Join(dir, "models.yaml")
	os.WriteFile(catalogPath, []byte(`stub:
  stub-model:
    context_window: 8192
    input_per_1m: 1.0
    output_per_1m: 2.0
`), 0o644)

	envPath := filepath.Join(dir, ".env")
	os.WriteFile(envPath, []byte("STUB_API_KEY=sk-stub\n"), 0o600)

	cfgPath = filepath.Join(dir, "promptarena.yaml")
	cfg := fmt.Sprintf(`providers:
  - name: stub
    kind: openai
    base_url: %s
    api_key_env: STUB_API_KEY

targets:
  - provider: stub
    model: stub-model

defaults:
  concurrency: 2

catalog: %s

secrets:
  env_file: %s

results:
  dir: %s
`, baseURL, catalogPath, envPath, resultsDir)
	os.WriteFile(cfgPath, []byte(cfg), 0o644)
	return cfgPath, resultsDir
}

func TestRunEndToEnd(t *testing.T) {
	srv := startStubProvider(t)
	cfgPath, resultsDir := writeFixtures(t, srv.URL)

	root := cmd.NewRootCmd()
	root.SetArgs([]string{"run", "--config", cfgPath, "--prompt", "integration hello"})
	if err := root.Execute(); err != nil {
		t.Fatalf("run command: %v", err)
	}

	records, err := result.CollectRecords(resultsDir)
	if err != nil {
		t.Fatalf("CollectRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(records))
	}
	rec := records[0]
	if rec.Summary.Succeeded != 1 || rec.Summary.Failed != 0 {
		t.Errorf("summary: got %+v", rec.Summary)
	}
	if rec.Results[0].Response != "stub response" {
		t.Errorf("response: got %q", rec.Results[0].Response)
	}
	if rec.Results[0].TotalTokens != 14 {
		t.Errorf("tokens: got %d, want 14", rec.Results[0].TotalTokens)
	}

	// Report over the stored record.
	report := cmd.NewRootCmd()
	report.SetArgs([]string{"report", "--config", cfgPath})
	if err := report.Execute(); err != nil {
		t.Fatalf("report command: %v", err)
	}
}
