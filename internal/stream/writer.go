package stream

import (
	"fmt"
	"io"
	"net/http"
)

// Writer emits encoded lines and flushes each one so the consumer sees it
// as soon as it is produced.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	lines   int
}

// NewWriter wraps w. If w implements http.Flusher it is flushed after every line.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteLine encodes l and writes it as one line.
func (sw *Writer) WriteLine(l Line) error {
	data, err := l.Encode()
	if err != nil {
		return err
	}
	if _, err := sw.w.Write(data); err != nil {
		return fmt.Errorf("write %s line: %w", l.Kind, err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	sw.lines++
	return nil
}

// Lines returns the number of lines written so far.
func (sw *Writer) Lines() int {
	return sw.lines
}
