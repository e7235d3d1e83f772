// Package engine defines the black-box inference runtime driven by the
// session layer, plus the engines shipped with the bridge:
//
//   - stub: deterministic, pure Go; renders the prompt template as tokens.
//   - llama: in-process go-llama.cpp, enabled with `-tags=llama`. Without the
//     tag NewLlama returns an engine whose Load fails with ErrUnavailable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors engines wrap so callers can classify failures with errors.Is.
var (
	ErrCorruptFormat = errors.New("engine: corrupt or unsupported model format")
	ErrOutOfMemory   = errors.New("engine: out of memory")
	// ErrTransient marks a generation failure that may succeed when retried.
	ErrTransient   = errors.New("engine: transient failure")
	ErrUnavailable = errors.New("engine: unavailable")
	ErrClosed      = errors.New("engine: context closed")
)

// Finish reasons reported in Result.
const (
	FinishStop   = "stop"
	FinishLength = "length"
)

// LoadOptions are passed to Engine.Load.
type LoadOptions struct {
	ContextSize int
	Threads     int
}

// Prompt is the input to one generation. An empty System means no system prompt.
type Prompt struct {
	System string
	User   string
}

// Params control sampling and bound the generation.
type Params struct {
	MaxTokens   int
	Temperature float32
	Seed        int
	Stop        []string
}

// Result summarizes a generation.
type Result struct {
	Text         string
	Tokens       int
	FinishReason string
}

// Engine loads models into engine contexts.
type Engine interface {
	Name() string
	// Load opens the model at path. Implementations must release everything
	// they allocated when returning an error.
	Load(ctx context.Context, path string, opts LoadOptions) (Context, error)
}

// Context is the engine state for one loaded model (weights, KV cache).
type Context interface {
	// Generate streams tokens to onToken and returns when done, when MaxTokens
	// is reached, or when ctx is canceled. ctx is observed between token steps;
	// on cancellation the partial Result is returned together with ctx.Err().
	Generate(ctx context.Context, p Prompt, params Params, onToken func(string) error) (Result, error)
	// Close releases the engine resources. Safe to call more than once.
	Close() error
}

// Options selects and configures an engine by name.
type Options struct {
	// Name is one of "stub", "llama" or "none".
	Name       string
	TokenDelay time.Duration
}

// New builds the named engine. "none" (or empty) returns a nil Engine, which
// the session layer treats as engine-less echo operation.
func New(opts Options) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Name)) {
	case "", "none":
		return nil, nil
	case "stub":
		return NewStub(opts.TokenDelay), nil
	case "llama":
		return NewLlama(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want stub|llama|none)", opts.Name)
	}
}
