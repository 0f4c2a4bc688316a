// Package generate runs a generation session: one model call per requested
// record, strictly in sequence, yielding a stream line for every attempt.
package generate

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/model"
	"github.com/ashureev/jailbreak-datagen/internal/prompt"
	"github.com/ashureev/jailbreak-datagen/internal/sanitize"
	"github.com/ashureev/jailbreak-datagen/internal/stream"
)

const (
	errorPreviewLen = 100
	logPreviewLen   = 200
)

// Orchestrator drives the request loop for one session at a time.
// It holds no per-session state and can be shared.
type Orchestrator struct {
	client        model.Client
	prompts       *prompt.Builder
	logger        *slog.Logger
	historyWindow int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHistoryWindow bounds the technique history passed into prompts.
// Zero keeps the full history.
func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) {
		o.historyWindow = n
	}
}

// New creates an orchestrator that sends requests to client.
func New(client model.Client, prompts *prompt.Builder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:  client,
		prompts: prompts,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run returns the line sequence for cfg, which must already be validated.
//
// Each attempt yields a data line or an item error line. A model failure
// yields one fatal line and ends the sequence. Cancelling ctx stops the loop
// before the next dispatch; a call interrupted by cancellation yields nothing.
// The consumer stopping the iteration has the same effect.
func (o *Orchestrator) Run(ctx context.Context, cfg domain.GenerationConfig) iter.Seq[stream.Line] {
	cfg = cfg.Normalize()

	return func(yield func(stream.Line) bool) {
		history := NewHistory(o.historyWindow)
		system := o.prompts.System()

		for i := 0; i < cfg.Count; i++ {
			if ctx.Err() != nil {
				o.logger.Info("Generation cancelled", "attempt", i+1, "count", cfg.Count)
				return
			}

			line, ok := o.attempt(ctx, cfg, i, system, history)
			if !ok {
				return
			}
			if !yield(line) {
				return
			}
			if line.Kind == stream.KindFatal {
				return
			}
		}
	}
}

// attempt performs one model call. ok is false when nothing should be
// emitted because ctx was cancelled during the call.
func (o *Orchestrator) attempt(ctx context.Context, cfg domain.GenerationConfig, i int, system string, history *History) (stream.Line, bool) {
	user, err := o.prompts.User(cfg, i, history.Items())
	if err != nil {
		return stream.Fatal(err.Error()), true
	}

	start := time.Now()
	completion, err := o.client.Complete(ctx, model.Request{System: system, User: user})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			o.logger.Info("Model call interrupted", "attempt", i+1, "error", err)
			return stream.Line{}, false
		}
		o.logger.Error("Model call failed", "attempt", i+1, "error", err)
		return stream.Fatal(fatalMessage(err)), true
	}

	o.logger.Info("Model call finished",
		"attempt", i+1,
		"count", cfg.Count,
		"stop_reason", completion.StopReason,
		"response_length", len(completion.Text),
		"history", history.Len(),
		"duration", time.Since(start))
	o.logger.Debug("Raw response preview", "attempt", i+1, "preview", sanitize.Preview(completion.Text, logPreviewLen))

	ex, err := sanitize.Parse(completion.Text)
	if err != nil {
		o.logger.Warn("Model response rejected", "attempt", i+1, "error", err)
		o.logger.Debug("Full raw response", "attempt", i+1, "raw", completion.Text)
		return stream.ItemError(i, "Failed to parse LLM response: "+sanitize.Preview(completion.Text, errorPreviewLen)), true
	}

	if assigned := cfg.CategoryFor(i); !cfg.HasCategory(ex.Category) {
		o.logger.Warn("Relabelled out-of-set category", "attempt", i+1, "returned", ex.Category, "assigned", assigned)
		ex.Category = assigned
	}

	history.Add(ex.AttackTechnique)
	return stream.Data(ex), true
}

func fatalMessage(err error) string {
	var merr *model.Error
	if errors.As(err, &merr) {
		return merr.Error()
	}
	return fmt.Sprintf("model request failed: %v", err)
}
