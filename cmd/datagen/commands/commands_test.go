package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/stream"
	"github.com/pterm/pterm"
)

func TestMain(m *testing.M) {
	pterm.SetDefaultOutput(io.Discard)
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func example(id, technique string, success bool, severity domain.Severity) domain.GeneratedExample {
	return domain.GeneratedExample{
		ID:              id,
		Category:        domain.CategoryDirectOverride,
		AttackTechnique: technique,
		AttackPrompt:    "prompt " + id,
		AttackSuccess:   success,
		Severity:        severity,
	}
}

func baseOptions(server string) generateOptions {
	return generateOptions{
		server:     server,
		apiKey:     "key",
		transport:  "http",
		format:     "json",
		count:      3,
		difficulty: "basic",
		quiet:      true,
	}
}

func streamServer(t *testing.T, lines ...stream.Line) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.GenerationConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, `{"error":"Invalid request body"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", stream.ContentType)
		sw := stream.NewWriter(w)
		for _, l := range lines {
			_ = sw.WriteLine(l)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunGenerateWritesFilteredCSV(t *testing.T) {
	t.Parallel()

	srv := streamServer(t,
		stream.Data(example("a", "alpha", true, domain.SeverityLow)),
		stream.ItemError(1, "Failed to parse LLM response: nope"),
		stream.Data(example("c", "charlie", true, domain.SeverityCritical)),
	)

	opts := baseOptions(srv.URL)
	opts.format = "csv"
	opts.out = filepath.Join(t.TempDir(), "dataset.csv")
	opts.success = "true"
	opts.sort = "severity"
	opts.desc = true

	if err := runGenerate(context.Background(), opts, io.Discard, nil); err != nil {
		t.Fatalf("runGenerate failed: %v", err)
	}

	f, err := os.Open(opts.out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 || rows[1][0] != "c" || rows[2][0] != "a" {
		t.Fatalf("unexpected rows: %q", rows)
	}
}

func TestRunGenerateStdoutJSONL(t *testing.T) {
	t.Parallel()

	srv := streamServer(t,
		stream.Data(example("a", "alpha", false, domain.SeverityLow)),
		stream.Data(example("b", "bravo", true, domain.SeverityHigh)),
	)

	opts := baseOptions(srv.URL)
	opts.format = "jsonl"
	opts.out = "-"

	var out bytes.Buffer
	if err := runGenerate(context.Background(), opts, &out, nil); err != nil {
		t.Fatalf("runGenerate failed: %v", err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d: %q", lines, out.String())
	}
}

func TestRunGenerateInterruptWritesPartial(t *testing.T) {
	t.Parallel()

	sent := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", stream.ContentType)
		sw := stream.NewWriter(w)
		_ = sw.WriteLine(stream.Data(example("a", "alpha", true, domain.SeverityLow)))
		close(sent)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	interrupts := make(chan os.Signal, 1)
	go func() {
		<-sent
		// Give the consumer a moment to read the flushed line.
		time.Sleep(50 * time.Millisecond)
		interrupts <- os.Interrupt
	}()

	opts := baseOptions(srv.URL)
	opts.count = 5
	opts.out = filepath.Join(t.TempDir(), "partial.json")

	if err := runGenerate(context.Background(), opts, io.Discard, interrupts); err != nil {
		t.Fatalf("aborted session should not be an error: %v", err)
	}

	data, err := os.ReadFile(opts.out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var got []domain.GeneratedExample
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected the partial record, got %+v", got)
	}
}

func TestRunGenerateServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"No API key configured."}`))
	}))
	t.Cleanup(srv.Close)

	opts := baseOptions(srv.URL)
	opts.out = filepath.Join(t.TempDir(), "never.json")

	err := runGenerate(context.Background(), opts, io.Discard, nil)
	if err == nil || !strings.Contains(err.Error(), "No API key configured.") {
		t.Fatalf("expected server error, got %v", err)
	}
	if _, statErr := os.Stat(opts.out); !os.IsNotExist(statErr) {
		t.Fatal("no file should be written when nothing was received")
	}
}

func TestRunGenerateRejectsBadOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*generateOptions)
		want   string
	}{
		{"count", func(o *generateOptions) { o.count = 0 }, "Count must be between 1 and 100"},
		{"category", func(o *generateOptions) { o.categories = []string{"jailbreak"} }, "Invalid categories: jailbreak"},
		{"format", func(o *generateOptions) { o.format = "xml" }, "unsupported export format"},
		{"sort", func(o *generateOptions) { o.sort = "notes" }, "unknown sort field"},
		{"transport", func(o *generateOptions) { o.transport = "grpc" }, "unknown transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := baseOptions("http://127.0.0.1:0")
			tt.mutate(&opts)
			err := runGenerate(context.Background(), opts, io.Discard, nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigDefaultsToAllCategories(t *testing.T) {
	t.Parallel()

	cfg := baseOptions("").config()
	if len(cfg.Categories) != len(domain.AllCategories()) {
		t.Fatalf("expected all categories, got %v", cfg.Categories)
	}

	opts := baseOptions("")
	opts.categories = []string{"multi_turn", "prompt_injection"}
	cfg = opts.config()
	if len(cfg.Categories) != 2 || cfg.Categories[0] != domain.CategoryMultiTurn {
		t.Fatalf("unexpected categories: %v", cfg.Categories)
	}
}

func TestPrintCategories(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := printCategories(&out); err != nil {
		t.Fatalf("printCategories failed: %v", err)
	}
	for _, c := range domain.AllCategories() {
		if !strings.Contains(out.String(), string(c)) {
			t.Fatalf("missing category %s in output", c)
		}
	}
	if !strings.Contains(out.String(), string(domain.DifficultyExpert)) {
		t.Fatal("missing difficulty levels")
	}
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	for _, name := range []string{"generate", "categories"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("missing %s command: %v", name, err)
		}
	}
}
