package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"llamabridge/internal/engine"
)

// createModelFile creates a file of approximately sizeMB megabytes and returns its path.
func createModelFile(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer f.Close()
	if sizeMB <= 0 {
		if _, err := f.Write([]byte("GGUF")); err != nil {
			t.Fatalf("write: %v", err)
		}
		return p
	}
	block := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return p
}

// fakeEngine is a scriptable in-memory engine used for tests.
type fakeEngine struct {
	mu sync.Mutex
	// loadErr is returned by Load; loadPartial also hands back a context with it.
	loadErr     error
	loadPartial bool
	// loadGate, when non-nil, blocks Load until closed or ctx is done.
	loadGate chan struct{}
	// genErrs are returned by successive Generate calls before succeeding.
	genErrs []error
	// tokensBeforeErr are emitted before a scripted error is returned.
	tokensBeforeErr int
	tokens          []string
	// holdGenerate makes Generate block until canceled, then take stopDelay to return.
	holdGenerate bool
	stopDelay    time.Duration

	loads    int
	closes   int
	gens     int
	contexts []*fakeContext
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Load(ctx context.Context, path string, opts engine.LoadOptions) (engine.Context, error) {
	e.mu.Lock()
	e.loads++
	gate := e.loadGate
	e.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadErr != nil {
		if e.loadPartial {
			c := &fakeContext{e: e}
			e.contexts = append(e.contexts, c)
			return c, e.loadErr
		}
		return nil, e.loadErr
	}
	c := &fakeContext{e: e}
	e.contexts = append(e.contexts, c)
	return c, nil
}

func (e *fakeEngine) counts() (loads, closes, gens int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads, e.closes, e.gens
}

type fakeContext struct {
	e      *fakeEngine
	closed bool
}

func (c *fakeContext) Generate(ctx context.Context, p engine.Prompt, params engine.Params, onToken func(string) error) (engine.Result, error) {
	c.e.mu.Lock()
	c.e.gens++
	var scripted error
	if len(c.e.genErrs) > 0 {
		scripted = c.e.genErrs[0]
		c.e.genErrs = c.e.genErrs[1:]
	}
	toks := append([]string(nil), c.e.tokens...)
	before := c.e.tokensBeforeErr
	closed := c.closed
	hold, stopDelay := c.e.holdGenerate, c.e.stopDelay
	c.e.mu.Unlock()
	if closed {
		return engine.Result{}, engine.ErrClosed
	}
	if hold {
		<-ctx.Done()
		time.Sleep(stopDelay)
		return engine.Result{}, ctx.Err()
	}
	var res engine.Result
	emit := func(tok string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onToken(tok); err != nil {
			return err
		}
		res.Text += tok
		res.Tokens++
		return nil
	}
	if scripted != nil {
		for i := 0; i < before && i < len(toks); i++ {
			if err := emit(toks[i]); err != nil {
				return res, err
			}
		}
		return res, scripted
	}
	for _, tok := range toks {
		if res.Tokens >= params.MaxTokens {
			res.FinishReason = engine.FinishLength
			return res, nil
		}
		if err := emit(tok); err != nil {
			return res, err
		}
	}
	res.FinishReason = engine.FinishStop
	return res, nil
}

func (c *fakeContext) Close() error {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.e.closes++
	}
	return nil
}

// waitState polls until s reaches want or fails the test after a timeout.
func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for state %s (have %s)", want, s.State())
		}
		time.Sleep(time.Millisecond)
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func stubConfig(delay time.Duration) Config {
	return Config{Engine: engine.NewStub(delay)}
}

func createEmpty(t *testing.T, p string) {
	t.Helper()
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
