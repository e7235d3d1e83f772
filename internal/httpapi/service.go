package httpapi

import (
	"context"
	"net/http"
	"time"

	"llamabridge/internal/bridge"
	"llamabridge/internal/catalog"
	"llamabridge/internal/session"
	"llamabridge/pkg/types"
)

// Service defines the methods required by the HTTP API layer. An empty
// session id addresses the default slot.
type Service interface {
	ListModels() ([]types.Model, error)
	Status() types.StatusResponse
	Ready() bool
	CreateSession() string
	DestroySession(id string) error
	Load(ctx context.Context, id, path string) (types.LoadResponse, error)
	Unload(id string) error
	SessionReady(id string) (bool, error)
	Generate(ctx context.Context, id string, req types.GenerateRequest, onToken func(string) error) (types.GenerateResponse, error)
}

// RegistryService implements Service over a session.Registry. The default
// slot is the session driven by a bridge.Bridge.
type RegistryService struct {
	reg     *session.Registry
	cat     *catalog.Catalog
	def     *bridge.Bridge
	started time.Time
}

// NewService wires a registry, a model catalog (may be nil) and the bridge
// whose slot backs the unprefixed routes.
func NewService(reg *session.Registry, cat *catalog.Catalog, def *bridge.Bridge) *RegistryService {
	return &RegistryService{reg: reg, cat: cat, def: def, started: time.Now()}
}

func (s *RegistryService) id(raw string) session.ID {
	if raw == "" {
		return s.def.SessionID()
	}
	return session.ID(raw)
}

func (s *RegistryService) ListModels() ([]types.Model, error) {
	if s.cat == nil {
		return []types.Model{}, nil
	}
	return s.cat.List()
}

func (s *RegistryService) Status() types.StatusResponse {
	cfg := s.reg.Config()
	snaps := s.reg.Snapshot()
	out := types.StatusResponse{
		Sessions:      make([]types.SessionStatus, 0, len(snaps)),
		Engine:        cfg.EngineName(),
		EchoMode:      cfg.EchoMode,
		BudgetMB:      cfg.BudgetMB,
		UsedMB:        s.reg.UsedMB(),
		UptimeSeconds: int64(time.Since(s.started) / time.Second),
	}
	for _, sn := range snaps {
		st := types.SessionStatus{
			ID:          string(sn.ID),
			State:       sn.State.String(),
			ModelPath:   sn.ModelPath,
			ModelSizeMB: sn.ModelSizeMB,
			LastError:   sn.LastError,
			Default:     sn.ID == s.def.SessionID(),
		}
		if !sn.LastUsed.IsZero() {
			st.LastUsed = sn.LastUsed.Unix()
		}
		out.Sessions = append(out.Sessions, st)
	}
	return out
}

// Ready reports readiness of the default slot. In echo mode the server can
// always answer.
func (s *RegistryService) Ready() bool {
	if s.reg.Config().EchoMode {
		return true
	}
	return s.def.IsReady()
}

func (s *RegistryService) CreateSession() string {
	id, _ := s.reg.Create()
	return string(id)
}

func (s *RegistryService) DestroySession(id string) error {
	if id == "" || session.ID(id) == s.def.SessionID() {
		return statusError{code: http.StatusConflict, msg: "the default session cannot be destroyed"}
	}
	return s.reg.Destroy(session.ID(id))
}

func (s *RegistryService) Load(ctx context.Context, id, path string) (types.LoadResponse, error) {
	st, err := s.reg.Load(ctx, s.id(id), path)
	return types.LoadResponse{OK: err == nil && st == session.StateReady, State: st.String()}, err
}

func (s *RegistryService) Unload(id string) error {
	return s.reg.Unload(s.id(id))
}

func (s *RegistryService) SessionReady(id string) (bool, error) {
	return s.reg.Ready(s.id(id))
}

func (s *RegistryService) Generate(ctx context.Context, id string, req types.GenerateRequest, onToken func(string) error) (types.GenerateResponse, error) {
	greq := session.GenerationRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  bridge.DefaultTemperature,
	}
	if greq.MaxTokens == 0 {
		greq.MaxTokens = bridge.DefaultMaxTokens
	}
	if req.Temperature != nil {
		greq.Temperature = float32(*req.Temperature)
	}
	res, err := s.reg.GenerateStream(ctx, s.id(id), greq, onToken)
	out := types.GenerateResponse{
		Text:           res.Text,
		TokensProduced: res.TokensProduced,
		Finished:       res.Finished,
		FinishReason:   res.FinishReason,
	}
	if res.ErrorKind != session.KindNone {
		out.ErrorKind = res.ErrorKind.String()
	}
	return out, err
}
