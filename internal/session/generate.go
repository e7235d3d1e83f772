package session

import (
	"context"
	"errors"
	"time"

	"llamabridge/internal/engine"
)

// EchoMarker prefixes the prompt mirrored back in echo mode.
const EchoMarker = "Echo: "

// Generate runs one request to completion. See GenerateStream.
func (s *Session) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	return s.GenerateStream(ctx, req, nil)
}

// GenerateStream runs one request, passing each produced token to onToken.
//
// The session must be Ready: a concurrent generation yields ErrBusy (fail
// fast), any other state yields ErrNotLoaded. Transient engine errors are
// retried up to Config.MaxRetries while no token has been produced; any
// other engine error moves the session to Failed, recoverable only by
// Unload and Load. Cancellation (caller ctx, Unload, replacing Load) returns
// the partial result with Finished=false and ErrorKind=KindCanceled.
//
// In echo mode the engine is bypassed and the prompt is mirrored back
// behind EchoMarker regardless of state.
func (s *Session) GenerateStream(ctx context.Context, req GenerationRequest, onToken func(string) error) (GenerationResult, error) {
	if err := req.Validate(); err != nil {
		s.recordErr(err)
		return GenerationResult{ErrorKind: KindInvalidRequest}, err
	}
	if s.cfg.EchoMode {
		return s.echo(req, onToken)
	}

	s.mu.Lock()
	if s.cfg.Engine == nil {
		s.lastErr = ErrEngineUnavailable
		s.mu.Unlock()
		return GenerationResult{ErrorKind: KindEngineUnavailable}, ErrEngineUnavailable
	}
	switch st := s.State(); st {
	case StateReady:
	case StateGenerating:
		s.lastErr = ErrBusy
		s.mu.Unlock()
		return GenerationResult{ErrorKind: KindBusy}, ErrBusy
	default:
		s.lastErr = ErrNotLoaded
		s.mu.Unlock()
		return GenerationResult{ErrorKind: KindNotLoaded}, ErrNotLoaded
	}
	h := s.model
	op := newOperation(ctx, StateGenerating)
	s.inflight = op
	s.setState(StateGenerating)
	s.mu.Unlock()

	start := time.Now()
	s.log.Debug().Str("event", EventGenerateStart).Int("max_tokens", req.MaxTokens).Float32("temperature", req.Temperature).Msg("generate")
	s.publish(EventGenerateStart, map[string]any{"max_tokens": req.MaxTokens})

	r, err := s.runWithRetry(op.ctx, h, req, onToken)
	res := GenerationResult{Text: r.Text, TokensProduced: r.Tokens, FinishReason: r.FinishReason}

	var sink sinkError
	s.mu.Lock()
	switch {
	case err == nil:
		res.Finished = true
		s.lastErr = nil
		s.lastUsed = time.Now()
		s.setState(StateReady)
	case op.ctx.Err() != nil || errors.As(err, &sink):
		// Canceled, or the caller stopped consuming tokens. The model is intact.
		if !errors.As(err, &sink) {
			err = ErrCanceled
		}
		res.FinishReason = FinishCanceled
		res.ErrorKind = KindCanceled
		s.lastErr = err
		s.setState(StateReady)
	default:
		res.ErrorKind = KindEngineFailure
		s.lastErr = err
		s.setState(StateFailed)
	}
	s.inflight = nil
	op.finish()
	s.mu.Unlock()

	dur := int(time.Since(start) / time.Millisecond)
	fields := map[string]any{"tokens": res.TokensProduced, "dur_ms": dur, "finish_reason": res.FinishReason}
	if err != nil {
		fields["error"] = err.Error()
		fields["kind"] = res.ErrorKind.String()
		lvl := s.log.Warn()
		if res.ErrorKind == KindEngineFailure {
			lvl = s.log.Error()
		}
		lvl.Str("event", EventGenerateError).Int("tokens", res.TokensProduced).Int("dur_ms", dur).Err(err).Msg("generate failed")
		s.publish(EventGenerateError, fields)
		return res, err
	}
	s.log.Debug().Str("event", EventGenerateDone).Int("tokens", res.TokensProduced).Int("dur_ms", dur).Str("finish_reason", res.FinishReason).Msg("generate done")
	s.publish(EventGenerateDone, fields)
	return res, nil
}

func (s *Session) runWithRetry(ctx context.Context, h *ModelHandle, req GenerationRequest, onToken func(string) error) (engine.Result, error) {
	prompt := engine.Prompt{System: req.SystemPrompt, User: req.Prompt}
	params := engine.Params{MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	attempts := 1 + max(0, s.cfg.MaxRetries)
	for attempt := 1; ; attempt++ {
		produced := 0
		sink := func(tok string) error {
			produced++
			if onToken == nil {
				return nil
			}
			if err := onToken(tok); err != nil {
				return sinkError{err: err}
			}
			return nil
		}
		r, err := h.generate(ctx, prompt, params, sink)
		if err == nil {
			return r, nil
		}
		var se sinkError
		if ctx.Err() != nil || errors.As(err, &se) {
			return r, err
		}
		if errors.Is(err, engine.ErrTransient) && produced == 0 && attempt < attempts {
			s.log.Warn().Str("event", EventGenerateRetry).Int("attempt", attempt).Err(err).Msg("transient engine error, retrying")
			s.publish(EventGenerateRetry, map[string]any{"attempt": attempt, "error": err.Error()})
			continue
		}
		return r, &engineFailureError{attempts: attempt, err: err}
	}
}

func (s *Session) echo(req GenerationRequest, onToken func(string) error) (GenerationResult, error) {
	text := EchoMarker + req.Prompt
	if onToken != nil {
		if err := onToken(text); err != nil {
			err = sinkError{err: err}
			s.recordErr(err)
			return GenerationResult{ErrorKind: KindCanceled, FinishReason: FinishCanceled}, err
		}
	}
	s.recordErr(nil)
	return GenerationResult{Text: text, TokensProduced: 0, Finished: true, FinishReason: engine.FinishStop}, nil
}

func (s *Session) recordErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
