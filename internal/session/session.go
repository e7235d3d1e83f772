package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// operation records the in-flight load or generation of a Session.
type operation struct {
	kind   State
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newOperation(parent context.Context, kind State) *operation {
	ctx, cancel := context.WithCancel(parent)
	return &operation{kind: kind, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// finish releases waiters. Call with the session lock held, after the final
// state has been committed.
func (op *operation) finish() {
	op.cancel()
	close(op.done)
}

// Session wraps one ModelHandle and serializes load, generate and unload.
type Session struct {
	id        ID
	cfg       Config
	log       zerolog.Logger
	budget    Reserver
	createdAt time.Time

	// state is written under mu and read lock-free by IsReady/State.
	state atomic.Int32

	mu       sync.Mutex
	model    *ModelHandle
	lastErr  error
	lastUsed time.Time
	inflight *operation
}

// New creates a standalone Session with a fresh id and no shared budget.
func New(cfg Config) *Session {
	return newSession(ID(uuid.NewString()), cfg, nil)
}

func newSession(id ID, cfg Config, budget Reserver) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		id:        id,
		cfg:       cfg,
		log:       cfg.Logger.With().Str("session", string(id)).Logger(),
		budget:    budget,
		createdAt: time.Now(),
	}
	s.state.Store(int32(StateUnloaded))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() ID { return s.id }

// State returns the current lifecycle state without blocking.
func (s *Session) State() State { return State(s.state.Load()) }

// IsReady reports state == Ready. It never blocks and never mutates.
func (s *Session) IsReady() bool { return s.State() == StateReady }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// LastError returns the error of the most recent failed operation, or nil
// when the most recent operation succeeded.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id,
		State:     s.State(),
		LastUsed:  s.lastUsed,
		CreatedAt: s.createdAt,
	}
	if s.model != nil {
		snap.ModelPath = s.model.Path()
		snap.ModelSizeMB = s.model.SizeMB()
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

func (s *Session) publish(name string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	s.cfg.Publisher.Publish(Event{Name: name, SessionID: s.id, Fields: fields})
}

// cancelInflight cancels the current operation and waits for it to finish.
// Must be called with mu held; returns with mu held and no operation in flight.
func (s *Session) cancelInflight() {
	for s.inflight != nil {
		op := s.inflight
		op.cancel()
		s.mu.Unlock()
		<-op.done
		s.mu.Lock()
	}
}

// Load opens the model at path. A load already in progress is rejected with
// ErrAlreadyLoading. A loaded model (Ready, Generating or Failed) is replaced:
// an in-flight generation is canceled and awaited, the prior handle is closed,
// then the new model is opened. Load failures are never retried and leave the
// session Unloaded.
func (s *Session) Load(ctx context.Context, path string) (State, error) {
	start := time.Now()
	s.mu.Lock()
	if s.cfg.Engine == nil {
		s.lastErr = ErrEngineUnavailable
		st := s.State()
		s.mu.Unlock()
		return st, ErrEngineUnavailable
	}
	// Cancel a generation being replaced. The lock is dropped while waiting,
	// so a Load that got in first must be seen here and not canceled.
	for s.inflight != nil {
		if s.inflight.kind == StateLoading {
			s.mu.Unlock()
			return StateLoading, ErrAlreadyLoading
		}
		op := s.inflight
		op.cancel()
		s.mu.Unlock()
		<-op.done
		s.mu.Lock()
	}
	prev := s.model
	s.model = nil
	op := newOperation(ctx, StateLoading)
	s.inflight = op
	s.lastErr = nil
	s.setState(StateLoading)
	s.mu.Unlock()

	s.log.Info().Str("event", EventLoadStart).Str("path", path).Bool("replace", prev != nil).Msg("session load")
	s.publish(EventLoadStart, map[string]any{"path": path, "replace": prev != nil})
	if prev != nil {
		if err := prev.Close(); err != nil {
			s.log.Warn().Err(err).Str("path", prev.Path()).Msg("close prior model")
		}
	}

	h, err := OpenModel(op.ctx, s.cfg.Engine, path, s.cfg.LoadOptions, s.budget)
	if err == nil && op.ctx.Err() != nil {
		// Unloaded (or caller gave up) while the engine was loading.
		_ = h.Close()
		h, err = nil, op.ctx.Err()
	}
	if err != nil && IsCanceled(err) {
		err = fmt.Errorf("%w: load %s: %v", ErrCanceled, path, err)
	}

	s.mu.Lock()
	if err != nil {
		s.lastErr = err
		s.setState(StateUnloaded)
	} else {
		s.model = h
		s.lastUsed = time.Now()
		s.setState(StateReady)
	}
	st := s.State()
	s.inflight = nil
	op.finish()
	s.mu.Unlock()

	dur := int(time.Since(start) / time.Millisecond)
	if err != nil {
		s.log.Error().Str("event", EventLoadError).Str("path", path).Int("dur_ms", dur).Err(err).Msg("session load failed")
		s.publish(EventLoadError, map[string]any{"path": path, "error": err.Error(), "dur_ms": dur})
		return st, err
	}
	s.log.Info().Str("event", EventLoadReady).Str("path", h.Path()).Int("size_mb", h.SizeMB()).Int("dur_ms", dur).Msg("session ready")
	s.publish(EventLoadReady, map[string]any{"path": h.Path(), "size_mb": h.SizeMB(), "dur_ms": dur})
	return st, nil
}

// Unload moves the session to Unloaded from any state. An in-flight load or
// generation is canceled and awaited first, so the engine context is never
// used after it is closed. Unload always succeeds and is idempotent.
func (s *Session) Unload() {
	s.mu.Lock()
	s.cancelInflight()
	m := s.model
	s.model = nil
	prior := s.State()
	s.setState(StateUnloaded)
	s.lastErr = nil
	s.mu.Unlock()

	if m == nil {
		return
	}
	if err := m.Close(); err != nil {
		s.log.Warn().Err(err).Str("path", m.Path()).Msg("close model")
	}
	s.log.Info().Str("event", EventUnloadDone).Str("path", m.Path()).Str("prior", prior.String()).Msg("session unloaded")
	s.publish(EventUnloadDone, map[string]any{"path": m.Path(), "prior": prior.String()})
}
