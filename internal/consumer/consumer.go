// Package consumer reads a generation stream and folds it into a session state.
package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/ashureev/jailbreak-datagen/internal/stream"
)

const defaultReadSize = 32 << 10

// Consumer runs one generation session at a time and exposes its state.
// State and Abort may be called from any goroutine.
type Consumer struct {
	transport Transport
	logger    *slog.Logger
	readSize  int
	onChange  func(domain.SessionState)
	onSkip    func(index int, message string)

	mu        sync.Mutex
	state     *domain.SessionState
	canceller *Canceller
	session   uint64
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnChange registers an observer called with a snapshot after every
// state transition.
func WithOnChange(fn func(domain.SessionState)) Option {
	return func(c *Consumer) {
		c.onChange = fn
	}
}

// WithOnSkip registers an observer for attempts the server skipped.
func WithOnSkip(fn func(index int, message string)) Option {
	return func(c *Consumer) {
		c.onSkip = fn
	}
}

// WithReadSize sets the size of each read from the transport.
func WithReadSize(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// New creates a consumer in the idle state.
func New(transport Transport, opts ...Option) *Consumer {
	c := &Consumer{
		transport: transport,
		logger:    slog.Default(),
		readSize:  defaultReadSize,
		state:     domain.NewSessionState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current session state.
func (c *Consumer) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// Abort stops the active session, if any. Records received so far are kept
// and the session ends as completed.
func (c *Consumer) Abort() {
	c.mu.Lock()
	canceller := c.canceller
	c.mu.Unlock()
	if canceller != nil {
		canceller.Abort()
	}
}

// Clear aborts any active session and returns to an empty idle state.
func (c *Consumer) Clear() {
	c.mu.Lock()
	canceller := c.canceller
	c.canceller = nil
	c.session++
	c.state = domain.NewSessionState()
	snap := c.state.Snapshot()
	c.mu.Unlock()

	if canceller != nil {
		canceller.Abort()
	}
	c.notify(snap)
}

// Generate runs a session to completion and returns its final state. A
// previous session's state is discarded. The call returns when the stream
// ends, a fatal line arrives, the transport fails or the session is aborted.
func (c *Consumer) Generate(ctx context.Context, cfg domain.GenerationConfig, apiKey string) domain.SessionState {
	canceller, runCtx := NewCanceller(ctx)
	defer canceller.release()

	c.mu.Lock()
	if c.canceller != nil {
		c.canceller.Abort()
	}
	c.session++
	id := c.session
	c.canceller = canceller
	c.state = domain.NewSessionState()
	c.state.Start()
	snap := c.state.Snapshot()
	c.mu.Unlock()
	c.notify(snap)

	defer func() {
		c.mu.Lock()
		if c.session == id {
			c.canceller = nil
		}
		c.mu.Unlock()
	}()

	body, err := c.transport.Open(runCtx, cfg, apiKey)
	if err != nil {
		return c.finish(id, canceller, err)
	}
	defer body.Close()

	return c.read(id, canceller, body)
}

func (c *Consumer) read(id uint64, canceller *Canceller, body io.Reader) domain.SessionState {
	var lb stream.LineBuffer
	buf := make([]byte, c.readSize)

	for {
		if canceller.Aborted() {
			return c.finish(id, canceller, context.Canceled)
		}
		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range lb.Feed(buf[:n]) {
				// Lines already buffered when the caller aborts are dropped.
				if canceller.Aborted() {
					return c.finish(id, canceller, context.Canceled)
				}
				if stop := c.apply(id, line); stop {
					return c.State()
				}
			}
		}
		if err == nil {
			continue
		}

		if errors.Is(err, io.EOF) && !canceller.Aborted() {
			if pending := lb.Pending(); pending > 0 {
				c.logger.Debug("Flushing unterminated final line", "bytes", pending)
				if stop := c.apply(id, lb.Flush()); stop {
					return c.State()
				}
			}
			return c.finish(id, canceller, nil)
		}
		return c.finish(id, canceller, err)
	}
}

// apply folds one line into the state. It reports whether reading must stop.
func (c *Consumer) apply(id uint64, raw []byte) bool {
	res := stream.Decode(raw)
	if !res.OK() {
		c.logger.Debug("Skipped malformed stream line", "error", res.Err, "length", len(raw))
		return false
	}

	line := res.Line
	switch line.Kind {
	case stream.KindItemError:
		c.logger.Warn("Server skipped attempt", "index", line.Index, "message", line.Message)
		if c.onSkip != nil {
			c.onSkip(line.Index, line.Message)
		}
		return false
	case stream.KindData:
		return !c.update(id, func(s *domain.SessionState) { s.Append(line.Example) })
	case stream.KindFatal:
		c.logger.Error("Generation failed", "message", line.Message)
		c.update(id, func(s *domain.SessionState) { s.Fail(line.Message) })
		return true
	}
	return false
}

// finish moves the session to its terminal state. err is nil at end of
// stream. A failure after the caller aborted counts as a normal end.
func (c *Consumer) finish(id uint64, canceller *Canceller, err error) domain.SessionState {
	switch {
	case err == nil, canceller.Aborted():
		c.update(id, func(s *domain.SessionState) { s.Complete() })
	default:
		msg := err.Error()
		var serr *StatusError
		if errors.As(err, &serr) {
			msg = serr.Message
		}
		c.logger.Error("Generation stream failed", "error", err)
		c.update(id, func(s *domain.SessionState) { s.Fail(msg) })
	}
	return c.State()
}

// update applies fn if session id is still current and notifies observers.
// It returns false if the session has been superseded.
func (c *Consumer) update(id uint64, fn func(*domain.SessionState)) bool {
	c.mu.Lock()
	if c.session != id {
		c.mu.Unlock()
		return false
	}
	fn(c.state)
	snap := c.state.Snapshot()
	c.mu.Unlock()

	c.notify(snap)
	return true
}

func (c *Consumer) notify(snap domain.SessionState) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
