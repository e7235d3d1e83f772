package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"llamabridge/internal/common/fsutil"
	"llamabridge/internal/engine"
)

// Reserver accounts model memory against a shared budget.
type Reserver interface {
	// Reserve claims mb megabytes or fails when the budget would be exceeded.
	Reserve(mb int) error
	Release(mb int)
}

// ModelHandle owns one loaded model: its path, size estimate and the engine
// context. The engine context is non-nil iff the handle is loaded.
type ModelHandle struct {
	mu      sync.Mutex
	path    string
	sizeMB  int
	loaded  bool
	ec      engine.Context
	release func()
}

// OpenModel loads path with eng. Failures are *LoadError (or a context error
// when ctx ends first). Everything acquired along the way, including budget
// reservations and a partially created engine context, is released on every
// failing exit.
func OpenModel(ctx context.Context, eng engine.Engine, path string, opts engine.LoadOptions, budget Reserver) (h *ModelHandle, err error) {
	if eng == nil {
		return nil, ErrEngineUnavailable
	}
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, &LoadError{Kind: LoadNotFound, Path: path, Err: errors.New("empty path")}
	}
	p, err = fsutil.ExpandHome(p)
	if err != nil {
		return nil, &LoadError{Kind: LoadNotFound, Path: path, Err: err}
	}
	sizeMB, err := fsutil.FileSizeMB(p)
	if err != nil {
		return nil, &LoadError{Kind: LoadNotFound, Path: p, Err: err}
	}

	release := func() {}
	if budget != nil {
		if rerr := budget.Reserve(sizeMB); rerr != nil {
			return nil, &LoadError{Kind: LoadOutOfMemory, Path: p, Err: rerr}
		}
		var once sync.Once
		release = func() { once.Do(func() { budget.Release(sizeMB) }) }
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	ec, lerr := eng.Load(ctx, p, opts)
	if lerr != nil {
		if ec != nil {
			_ = ec.Close()
		}
		return nil, classifyLoadErr(p, lerr)
	}
	if ec == nil {
		return nil, &LoadError{Kind: LoadCorruptFormat, Path: p, Err: errors.New("engine returned no context")}
	}
	if cerr := ctx.Err(); cerr != nil {
		_ = ec.Close()
		return nil, cerr
	}
	return &ModelHandle{path: p, sizeMB: sizeMB, loaded: true, ec: ec, release: release}, nil
}

func classifyLoadErr(path string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, os.ErrNotExist):
		return &LoadError{Kind: LoadNotFound, Path: path, Err: err}
	case errors.Is(err, engine.ErrOutOfMemory):
		return &LoadError{Kind: LoadOutOfMemory, Path: path, Err: err}
	case errors.Is(err, engine.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	default:
		return &LoadError{Kind: LoadCorruptFormat, Path: path, Err: err}
	}
}

// Path is the expanded filesystem path of the model.
func (h *ModelHandle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// SizeMB is the file size estimate reserved against the budget.
func (h *ModelHandle) SizeMB() int {
	if h == nil {
		return 0
	}
	return h.sizeMB
}

// Loaded reports whether the engine context is still held.
func (h *ModelHandle) Loaded() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

func (h *ModelHandle) generate(ctx context.Context, p engine.Prompt, params engine.Params, onToken func(string) error) (engine.Result, error) {
	h.mu.Lock()
	ec := h.ec
	h.mu.Unlock()
	if ec == nil {
		return engine.Result{}, ErrNotLoaded
	}
	return ec.Generate(ctx, p, params, onToken)
}

// Close releases the engine context and the budget reservation. Closing an
// already closed handle is a no-op.
func (h *ModelHandle) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return nil
	}
	err := h.ec.Close()
	h.ec = nil
	h.loaded = false
	if h.release != nil {
		h.release()
	}
	return err
}
