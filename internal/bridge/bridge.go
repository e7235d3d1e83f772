// Package bridge is the thin boundary over a session.Registry: the four calls
// a managed host makes (load, unload, isReady, generate) plus status lookup.
// Every call returns a well-formed value. Errors are reported through
// LastError and panics are recovered into CodeEngineFailure.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"llamabridge/internal/session"
)

// Generation defaults applied by hosts that do not pass explicit values.
const (
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.7
)

var errNilArgument = fmt.Errorf("%w: required string is absent", session.ErrInvalidRequest)

// Bridge binds one registry slot to the boundary calls.
type Bridge struct {
	reg *session.Registry
	id  session.ID

	// argErr holds a rejected argument of the most recent call. Such calls
	// never reach the session, so its lastError cannot report them.
	mu     sync.Mutex
	argErr error
}

// New creates a Bridge that owns a fresh session in reg.
func New(reg *session.Registry) *Bridge {
	id, _ := reg.Create()
	return &Bridge{reg: reg, id: id}
}

// Attach binds a Bridge to an existing session in reg.
func Attach(reg *session.Registry, id session.ID) *Bridge {
	return &Bridge{reg: reg, id: id}
}

// SessionID returns the slot this Bridge drives.
func (b *Bridge) SessionID() session.ID { return b.id }

// Registry returns the underlying registry.
func (b *Bridge) Registry() *session.Registry { return b.reg }

func (b *Bridge) setArgErr(err error) {
	b.mu.Lock()
	b.argErr = err
	b.mu.Unlock()
}

// recoverInto turns a panic into an engine failure recorded for LastError.
func (b *Bridge) recoverInto(op string) {
	if r := recover(); r != nil {
		b.setArgErr(fmt.Errorf("%w: %s panicked: %v", session.ErrEngineFailure, op, r))
	}
}

// LoadModel loads the model at path. A nil path is rejected.
func (b *Bridge) LoadModel(path *string) (ok bool) {
	defer b.recoverInto("load")
	if path == nil {
		b.setArgErr(errNilArgument)
		return false
	}
	b.setArgErr(nil)
	st, err := b.reg.Load(context.Background(), b.id, *path)
	if err != nil && session.IsUnknownSession(err) {
		b.setArgErr(err)
	}
	return err == nil && st == session.StateReady
}

// UnloadModel unloads the current model. It is idempotent.
func (b *Bridge) UnloadModel() {
	defer b.recoverInto("unload")
	b.setArgErr(nil)
	if err := b.reg.Unload(b.id); err != nil {
		b.setArgErr(err)
	}
}

// IsReady reports whether a model is loaded and idle. It never blocks.
func (b *Bridge) IsReady() (ready bool) {
	defer b.recoverInto("isReady")
	ready, _ = b.reg.Ready(b.id)
	return ready
}

// Generate runs one request and returns its text. Failures return "" (a
// canceled generation returns whatever was produced before cancellation);
// the reason is available from LastError. A nil systemPrompt means absent.
func (b *Bridge) Generate(prompt, systemPrompt *string, maxTokens int, temperature float32) (text string) {
	res, _ := b.GenerateResult(context.Background(), prompt, systemPrompt, maxTokens, temperature)
	return res.Text
}

// GenerateResult is Generate with the full result and error, for hosts that
// can carry them.
func (b *Bridge) GenerateResult(ctx context.Context, prompt, systemPrompt *string, maxTokens int, temperature float32) (res session.GenerationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: generate panicked: %v", session.ErrEngineFailure, r)
			res = session.GenerationResult{ErrorKind: session.KindEngineFailure}
			b.setArgErr(err)
		}
	}()
	if prompt == nil {
		b.setArgErr(errNilArgument)
		return session.GenerationResult{ErrorKind: session.KindInvalidRequest}, errNilArgument
	}
	b.setArgErr(nil)
	req := session.GenerationRequest{Prompt: *prompt, MaxTokens: maxTokens, Temperature: temperature}
	if systemPrompt != nil {
		req.SystemPrompt = *systemPrompt
	}
	res, err = b.reg.Generate(ctx, b.id, req)
	switch {
	case err == nil:
	case res.ErrorKind == session.KindCanceled:
		// Partial text is still a well-formed answer.
	case session.IsUnknownSession(err):
		b.setArgErr(err)
		res.Text = ""
	default:
		res.Text = ""
	}
	return res, err
}

// LastError reports the outcome of the most recent call on this slot.
func (b *Bridge) LastError() Status {
	b.mu.Lock()
	err := b.argErr
	b.mu.Unlock()
	if err == nil {
		err = b.reg.LastError(b.id)
	}
	if err == nil {
		return Status{Code: CodeOK}
	}
	return Status{Code: CodeOf(err), Message: err.Error()}
}

// Close destroys the slot. Subsequent calls report CodeUnknownSession.
func (b *Bridge) Close() error {
	err := b.reg.Destroy(b.id)
	if session.IsUnknownSession(err) {
		return nil
	}
	return err
}
