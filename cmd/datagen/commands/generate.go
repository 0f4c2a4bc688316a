package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/jailbreak-datagen/internal/consumer"
	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/export"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type generateOptions struct {
	server       string
	apiKey       string
	clientID     string
	transport    string
	out          string
	format       string
	count        int
	categories   []string
	difficulty   string
	instructions string
	quiet        bool

	filterCategory string
	severity       string
	success        string
	search         string
	sort           string
	desc           bool
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Stream a dataset from the server and write it to a file",
		Long: `Start a generation session and write every record the server streams back.

Ctrl-C stops the session at once. The record in flight is discarded and the
records already received are still written. Filter and sort flags apply to the written file only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.apiKey == "" {
				opts.apiKey = os.Getenv("DATAGEN_API_KEY")
			}
			if opts.clientID == "" {
				opts.clientID = os.Getenv("DATAGEN_CLIENT_ID")
			}

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(interrupts)

			return runGenerate(cmd.Context(), opts, cmd.OutOrStdout(), interrupts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "datagen server base URL")
	f.StringVar(&opts.apiKey, "api-key", "", "Model API key sent as X-API-Key (env DATAGEN_API_KEY)")
	f.StringVar(&opts.clientID, "client-id", "", "Client ID that owns the session (env DATAGEN_CLIENT_ID)")
	f.StringVar(&opts.transport, "transport", "http", "Stream transport: http or ws")
	f.StringVarP(&opts.out, "out", "o", "-", "Output file, - for stdout")
	f.StringVar(&opts.format, "format", "json", "Output format: json, jsonl or csv")
	f.IntVarP(&opts.count, "count", "n", 10, "Number of records to request (1-100)")
	f.StringSliceVarP(&opts.categories, "category", "c", nil, "Attack category, repeatable (default all)")
	f.StringVarP(&opts.difficulty, "difficulty", "d", string(domain.DifficultyIntermediate), "basic, intermediate, advanced or expert")
	f.StringVar(&opts.instructions, "instructions", "", "Additional instructions for the generator")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")

	f.StringVar(&opts.filterCategory, "filter-category", "", "Only write records of this category")
	f.StringVar(&opts.severity, "severity", "", "Only write records of this severity")
	f.StringVar(&opts.success, "success", "", "Only write records with this attackSuccess value")
	f.StringVar(&opts.search, "search", "", "Only write records matching this text")
	f.StringVar(&opts.sort, "sort", "", "Sort by category, attackSuccess, severity or attackTechnique")
	f.BoolVar(&opts.desc, "desc", false, "Sort descending")

	return cmd
}

func (o generateOptions) config() domain.GenerationConfig {
	cfg := domain.GenerationConfig{
		Count:              o.count,
		Difficulty:         domain.Difficulty(o.difficulty),
		CustomInstructions: o.instructions,
	}
	if len(o.categories) == 0 {
		cfg.Categories = domain.AllCategories()
	}
	for _, c := range o.categories {
		cfg.Categories = append(cfg.Categories, domain.Category(c))
	}
	return cfg
}

func (o generateOptions) newTransport() (consumer.Transport, error) {
	client := &http.Client{}
	switch o.transport {
	case "http", "":
		return &consumer.HTTPTransport{BaseURL: o.server, ClientID: o.clientID, Client: client}, nil
	case "ws":
		return &consumer.WSTransport{BaseURL: o.server, ClientID: o.clientID, HTTPClient: client}, nil
	}
	return nil, fmt.Errorf("unknown transport %q (want http or ws)", o.transport)
}

func runGenerate(ctx context.Context, opts generateOptions, stdout io.Writer, interrupts <-chan os.Signal) error {
	cfg := opts.config()
	if err := cfg.Validate(); err != nil {
		return err
	}
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	dir := "asc"
	if opts.desc {
		dir = "desc"
	}
	query, err := export.ParseQuery(opts.filterCategory, opts.severity, opts.success, opts.search, opts.sort, dir)
	if err != nil {
		return err
	}
	transport, err := opts.newTransport()
	if err != nil {
		return err
	}

	progress := newProgress(cfg.Count, opts.quiet)
	c := consumer.New(transport,
		consumer.WithLogger(slog.Default()),
		consumer.WithOnChange(progress.onChange),
		consumer.WithOnSkip(progress.onSkip))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			progress.note("Interrupted, stopping now and keeping the records received")
			c.Abort()
		case <-done:
		}
	}()

	state := c.Generate(ctx, cfg, opts.apiKey)
	progress.stop()

	examples := query.Apply(state.Examples)
	if len(state.Examples) > 0 || state.Status != domain.StatusError {
		if err := writeDataset(opts.out, stdout, format, examples); err != nil {
			return err
		}
	}

	pterm.Info.Printfln("%d records received, %d skipped, %d written", len(state.Examples), progress.skipped, len(examples))
	if state.Status == domain.StatusError {
		return fmt.Errorf("generation failed: %s", state.Error)
	}
	pterm.Success.Println("Generation complete")
	return nil
}

func writeDataset(path string, stdout io.Writer, format export.Format, examples []domain.GeneratedExample) error {
	if path == "" || path == "-" {
		return export.Write(stdout, format, examples)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := export.Write(f, format, examples); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	pterm.Info.Printfln("Wrote %s", path)
	return nil
}

// progress renders consumer callbacks on a pterm progress bar. Callbacks
// arrive on the Generate goroutine, so no locking is needed.
type progress struct {
	bar     *pterm.ProgressbarPrinter
	records int
	skipped int
}

func newProgress(total int, quiet bool) *progress {
	p := &progress{}
	if quiet {
		return p
	}
	bar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle("Generating").Start()
	if err != nil {
		slog.Debug("Progress bar unavailable", "error", err)
		return p
	}
	p.bar = bar
	return p
}

func (p *progress) onChange(s domain.SessionState) {
	if s.Progress > p.records {
		p.advance(s.Progress - p.records)
		p.records = s.Progress
	}
}

func (p *progress) onSkip(index int, message string) {
	p.skipped++
	p.advance(1)
	slog.Info("Attempt skipped", "attempt", index+1, "reason", message)
}

func (p *progress) advance(n int) {
	if p.bar != nil {
		p.bar.Add(n)
	}
}

func (p *progress) note(msg string) {
	pterm.Warning.Println(msg)
}

func (p *progress) stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
}
