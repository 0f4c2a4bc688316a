// Package stream defines the newline-delimited JSON protocol spoken between
// the generation server and its consumers.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
)

// ContentType is the media type of a generation stream.
const ContentType = "application/x-ndjson"

// Kind tags the variant carried by a Line.
type Kind int

const (
	KindData Kind = iota + 1
	KindItemError
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindItemError:
		return "item_error"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Line is one message of the stream: a record, a skipped attempt or a fatal
// error that ends the session.
type Line struct {
	Kind    Kind
	Example domain.GeneratedExample
	Index   int
	Message string
}

// Data wraps a successfully generated record.
func Data(ex domain.GeneratedExample) Line {
	return Line{Kind: KindData, Example: ex}
}

// ItemError reports that the attempt with the given index was skipped.
func ItemError(index int, msg string) Line {
	return Line{Kind: KindItemError, Index: index, Message: msg}
}

// Fatal reports an error that ends the session.
func Fatal(msg string) Line {
	return Line{Kind: KindFatal, Message: msg}
}

type itemErrorWire struct {
	Error   bool   `json:"error"`
	Index   int    `json:"index"`
	Message string `json:"message"`
}

type fatalWire struct {
	Error   bool   `json:"error"`
	Fatal   bool   `json:"fatal"`
	Message string `json:"message"`
}

// Encode renders l as a single compact JSON line terminated by '\n'.
func (l Line) Encode() ([]byte, error) {
	var v any
	switch l.Kind {
	case KindData:
		v = l.Example
	case KindItemError:
		v = itemErrorWire{Error: true, Index: l.Index, Message: l.Message}
	case KindFatal:
		v = fatalWire{Error: true, Fatal: true, Message: l.Message}
	default:
		return nil, fmt.Errorf("encode line: unknown kind %d", l.Kind)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s line: %w", l.Kind, err)
	}
	return append(data, '\n'), nil
}

// Errors explaining why a line was skipped.
var (
	ErrBlankLine     = errors.New("blank line")
	ErrNotObject     = errors.New("line is not a JSON object")
	ErrNotInContract = errors.New("line is outside the data contract")
)

// Result is the outcome of decoding one line: either a Line, or a skip with
// the reason. Skipped lines never affect consumer state.
type Result struct {
	Line Line
	Skip bool
	Err  error
}

// OK reports whether the result carries a decoded line.
func (r Result) OK() bool {
	return !r.Skip
}

func skip(err error) Result {
	return Result{Skip: true, Err: err}
}

type envelope struct {
	Error   *bool   `json:"error"`
	Fatal   bool    `json:"fatal"`
	Index   *int    `json:"index"`
	Message string  `json:"message"`
	ID      *string `json:"id"`
}

// Decode interprets a single line without its terminator. It never panics;
// anything that is not a well-formed protocol line yields a skip Result.
func Decode(raw []byte) Result {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return skip(ErrBlankLine)
	}
	if raw[0] != '{' {
		return skip(ErrNotObject)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return skip(fmt.Errorf("%w: %v", ErrNotObject, err))
	}

	if env.Error != nil && *env.Error {
		if env.Fatal {
			return Result{Line: Fatal(env.Message)}
		}
		if env.Index == nil {
			return skip(fmt.Errorf("%w: error line without index", ErrNotInContract))
		}
		return Result{Line: ItemError(*env.Index, env.Message)}
	}

	if env.ID == nil || *env.ID == "" {
		return skip(fmt.Errorf("%w: record without id", ErrNotInContract))
	}

	var ex domain.GeneratedExample
	if err := json.Unmarshal(raw, &ex); err != nil {
		return skip(fmt.Errorf("%w: %v", ErrNotInContract, err))
	}
	return Result{Line: Data(ex)}
}
