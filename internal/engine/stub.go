package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Stub is a deterministic engine used for bring-up and tests. Any non-empty
// file is accepted as a model; output depends only on the prompt.
type Stub struct {
	// TokenDelay is slept between tokens so callers can observe streaming and cancellation.
	TokenDelay time.Duration
}

// NewStub returns a stub engine.
func NewStub(tokenDelay time.Duration) *Stub { return &Stub{TokenDelay: tokenDelay} }

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Load(ctx context.Context, path string, opts LoadOptions) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var probe [1]byte
	if _, err := f.Read(probe[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", ErrCorruptFormat, path)
		}
		return nil, err
	}
	return &stubContext{path: path, delay: s.TokenDelay}, nil
}

type stubContext struct {
	mu     sync.Mutex
	path   string
	delay  time.Duration
	closed bool
}

func (c *stubContext) Generate(ctx context.Context, p Prompt, params Params, onToken func(string) error) (Result, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return Result{}, ErrClosed
	}
	toks := stubTokens(p)
	var (
		b   strings.Builder
		res Result
	)
	for i, tok := range toks {
		if params.MaxTokens > 0 && res.Tokens >= params.MaxTokens {
			res.Text = b.String()
			res.FinishReason = FinishLength
			return res, nil
		}
		if i > 0 && c.delay > 0 {
			t := time.NewTimer(c.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				res.Text = b.String()
				return res, ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			res.Text = b.String()
			return res, err
		}
		if onToken != nil {
			if err := onToken(tok); err != nil {
				res.Text = b.String()
				return res, err
			}
		}
		b.WriteString(tok)
		res.Tokens++
	}
	res.Text = b.String()
	res.FinishReason = FinishStop
	return res, nil
}

func (c *stubContext) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
