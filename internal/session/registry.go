package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry maps session identifiers to sessions. The map and the memory
// budget accounting share one lock; per-session operations are serialized
// by the sessions themselves and run without holding it.
type Registry struct {
	cfg Config
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[ID]*Session
	usedMB   int
}

// NewRegistry constructs an empty Registry. Sessions it creates share cfg.
func NewRegistry(cfg Config) *Registry {
	cfg = cfg.withDefaults()
	return &Registry{
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "registry").Logger(),
		sessions: make(map[ID]*Session),
	}
}

// Config returns the effective configuration.
func (r *Registry) Config() Config { return r.cfg }

// Create adds a new Unloaded session with a freshly generated id.
func (r *Registry) Create() (ID, *Session) {
	id := ID(uuid.NewString())
	s := newSession(id, r.cfg, r)
	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.log.Debug().Str("event", EventCreated).Str("session", string(id)).Int("sessions", n).Msg("session created")
	r.cfg.Publisher.Publish(Event{Name: EventCreated, SessionID: id, Fields: map[string]any{"sessions": n}})
	return id, s
}

// Get looks up a session.
func (r *Registry) Get(id ID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

// Destroy unloads the session and removes it. The entry is removed first so
// no new caller can reach a session that is being torn down.
func (r *Registry) Destroy(id ID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.Unload()
	r.log.Debug().Str("event", EventDestroyed).Str("session", string(id)).Int("sessions", n).Msg("session destroyed")
	r.cfg.Publisher.Publish(Event{Name: EventDestroyed, SessionID: id, Fields: map[string]any{"sessions": n}})
	return nil
}

// Close destroys every session.
func (r *Registry) Close() error {
	r.mu.RLock()
	ids := make([]ID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		// Concurrent Destroy calls may race us; unknown ids are fine here.
		_ = r.Destroy(id)
	}
	return nil
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a view of every session, oldest first.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()
	out := make([]Snapshot, 0, len(list))
	for _, s := range list {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UsedMB returns the memory reserved by loaded models.
func (r *Registry) UsedMB() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usedMB
}

// Reserve implements Reserver against BudgetMB and MarginMB.
func (r *Registry) Reserve(mb int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.BudgetMB > 0 && r.usedMB+mb+r.cfg.MarginMB > r.cfg.BudgetMB {
		return fmt.Errorf("memory budget exceeded: need %dMB, used %dMB of %dMB (margin %dMB)", mb, r.usedMB, r.cfg.BudgetMB, r.cfg.MarginMB)
	}
	r.usedMB += mb
	return nil
}

// Release implements Reserver.
func (r *Registry) Release(mb int) {
	r.mu.Lock()
	r.usedMB -= mb
	if r.usedMB < 0 {
		r.usedMB = 0
	}
	r.mu.Unlock()
}

// Load forwards to the session's Load.
func (r *Registry) Load(ctx context.Context, id ID, path string) (State, error) {
	s, err := r.Get(id)
	if err != nil {
		return StateUnloaded, err
	}
	return s.Load(ctx, path)
}

// Unload forwards to the session's Unload.
func (r *Registry) Unload(id ID) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	s.Unload()
	return nil
}

// Ready forwards to the session's IsReady.
func (r *Registry) Ready(id ID) (bool, error) {
	s, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return s.IsReady(), nil
}

// Generate forwards to the session's Generate.
func (r *Registry) Generate(ctx context.Context, id ID, req GenerationRequest) (GenerationResult, error) {
	return r.GenerateStream(ctx, id, req, nil)
}

// GenerateStream forwards to the session's GenerateStream.
func (r *Registry) GenerateStream(ctx context.Context, id ID, req GenerationRequest, onToken func(string) error) (GenerationResult, error) {
	s, err := r.Get(id)
	if err != nil {
		return GenerationResult{}, err
	}
	return s.GenerateStream(ctx, req, onToken)
}

// LastError forwards to the session's LastError.
func (r *Registry) LastError(id ID) error {
	s, err := r.Get(id)
	if err != nil {
		return err
	}
	return s.LastError()
}
