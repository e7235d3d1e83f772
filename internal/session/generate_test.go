package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"llamabridge/internal/engine"
)

func loadedSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	p := createModelFile(t, t.TempDir(), "model.gguf", 0)
	s := New(cfg)
	if _, err := s.Load(testCtx(t), p); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

// runAsync starts a generation and returns a channel that yields its outcome.
func runAsync(s *Session, ctx context.Context, req GenerationRequest) <-chan genOutcome {
	ch := make(chan genOutcome, 1)
	go func() {
		res, err := s.Generate(ctx, req)
		ch <- genOutcome{res, err}
	}()
	return ch
}

type genOutcome struct {
	res GenerationResult
	err error
}

func await(t *testing.T, ch <-chan genOutcome) genOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(3 * time.Second):
		t.Fatalf("generation did not return")
		return genOutcome{}
	}
}

func TestGenerateNotLoaded(t *testing.T) {
	s := New(stubConfig(0))
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "hi", MaxTokens: 4})
	if !IsNotLoaded(err) || res.ErrorKind != KindNotLoaded {
		t.Fatalf("err=%v kind=%s", err, res.ErrorKind)
	}
	if s.State() != StateUnloaded {
		t.Fatalf("state changed to %s", s.State())
	}
}

func TestGenerateScenario(t *testing.T) {
	s := loadedSession(t, stubConfig(0))
	req := GenerationRequest{Prompt: "2+2=", SystemPrompt: "You are terse.", MaxTokens: 8, Temperature: 0}
	want := "Assistant:\nYou are terse.\n2+2="
	for i := 0; i < 2; i++ {
		res, err := s.Generate(testCtx(t), req)
		if err != nil {
			t.Fatalf("generate #%d: %v", i, err)
		}
		if res.Text != want {
			t.Fatalf("text=%q want %q", res.Text, want)
		}
		if !res.Finished || res.ErrorKind != KindNone || res.TokensProduced != 7 {
			t.Fatalf("unexpected result: %+v", res)
		}
		if !strings.HasPrefix(res.Text, engine.AssistantMarker) || !strings.Contains(res.Text, req.SystemPrompt) {
			t.Fatalf("text missing marker or system prompt: %q", res.Text)
		}
	}
	if !s.IsReady() {
		t.Fatalf("expected ready after generation")
	}
}

func TestGenerateWithoutSystemPrompt(t *testing.T) {
	s := loadedSession(t, stubConfig(0))
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "hello there", MaxTokens: 16})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "Assistant: hello there" {
		t.Fatalf("text=%q", res.Text)
	}
}

func TestGenerateMaxTokensBound(t *testing.T) {
	s := loadedSession(t, stubConfig(0))
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "one two three four five", MaxTokens: 2})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.TokensProduced != 2 || res.FinishReason != engine.FinishLength || !res.Finished {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGenerateEchoMode(t *testing.T) {
	s := New(Config{EchoMode: true})
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "hello", MaxTokens: 4})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "Echo: hello" || !res.Finished || res.TokensProduced != 0 {
		t.Fatalf("unexpected echo result: %+v", res)
	}
	if _, err := s.Load(testCtx(t), "model.gguf"); !IsEngineUnavailable(err) {
		t.Fatalf("load in echo mode: %v", err)
	}
}

func TestGenerateNoEngine(t *testing.T) {
	s := New(Config{})
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "hello", MaxTokens: 4})
	if !IsEngineUnavailable(err) || res.ErrorKind != KindEngineUnavailable {
		t.Fatalf("err=%v kind=%s", err, res.ErrorKind)
	}
}

func TestGenerateValidation(t *testing.T) {
	s := loadedSession(t, stubConfig(0))
	cases := []GenerationRequest{
		{Prompt: "x", MaxTokens: 0},
		{Prompt: "x", MaxTokens: -1},
		{Prompt: "x", MaxTokens: 4, Temperature: -0.1},
		{Prompt: "x", MaxTokens: 4, Temperature: 2.5},
	}
	for _, req := range cases {
		res, err := s.Generate(testCtx(t), req)
		if !IsInvalidRequest(err) || res.ErrorKind != KindInvalidRequest {
			t.Fatalf("req %+v: err=%v kind=%s", req, err, res.ErrorKind)
		}
	}
	if !s.IsReady() {
		t.Fatalf("invalid requests must not change state, have %s", s.State())
	}
	if _, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4, Temperature: 2}); err != nil {
		t.Fatalf("temperature 2 should be accepted: %v", err)
	}
}

func TestGenerateBusy(t *testing.T) {
	s := loadedSession(t, stubConfig(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := runAsync(s, ctx, GenerationRequest{Prompt: strings.Repeat("word ", 50), MaxTokens: 100})
	waitState(t, s, StateGenerating)
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4})
	if !IsBusy(err) || res.ErrorKind != KindBusy {
		t.Fatalf("second generate: err=%v kind=%s", err, res.ErrorKind)
	}
	if s.IsReady() {
		t.Fatalf("ready while generating")
	}
	cancel()
	o := await(t, first)
	if !IsCanceled(o.err) || o.res.ErrorKind != KindCanceled || o.res.Finished {
		t.Fatalf("first generate after cancel: %+v err=%v", o.res, o.err)
	}
	if !s.IsReady() {
		t.Fatalf("caller cancellation must leave the model ready, have %s", s.State())
	}
}

func TestUnloadCancelsGeneration(t *testing.T) {
	s := loadedSession(t, stubConfig(20*time.Millisecond))
	ch := runAsync(s, testCtx(t), GenerationRequest{Prompt: strings.Repeat("word ", 50), MaxTokens: 100})
	waitState(t, s, StateGenerating)
	s.Unload()
	if s.IsReady() || s.State() != StateUnloaded {
		t.Fatalf("state after unload: %s", s.State())
	}
	o := await(t, ch)
	if o.res.Finished || o.res.ErrorKind != KindCanceled || o.res.FinishReason != FinishCanceled {
		t.Fatalf("unexpected result: %+v", o.res)
	}
	if !errors.Is(o.err, ErrCanceled) {
		t.Fatalf("err=%v", o.err)
	}
	if o.res.TokensProduced >= 100 {
		t.Fatalf("generation ran to completion despite unload")
	}
	if _, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4}); !IsNotLoaded(err) {
		t.Fatalf("generate after unload: %v", err)
	}
}

func TestLoadDuringGenerationReplaces(t *testing.T) {
	dir := t.TempDir()
	b := createModelFile(t, dir, "b.gguf", 0)
	s := loadedSession(t, stubConfig(20*time.Millisecond))
	ch := runAsync(s, testCtx(t), GenerationRequest{Prompt: strings.Repeat("word ", 50), MaxTokens: 100})
	waitState(t, s, StateGenerating)
	st, err := s.Load(testCtx(t), b)
	if err != nil || st != StateReady {
		t.Fatalf("replace load: state=%s err=%v", st, err)
	}
	o := await(t, ch)
	if o.res.ErrorKind != KindCanceled {
		t.Fatalf("in-flight generation should be canceled: %+v", o.res)
	}
	if got := s.Snapshot().ModelPath; got != b {
		t.Fatalf("model=%s want %s", got, b)
	}
}

func TestGenerateStreamTokens(t *testing.T) {
	s := loadedSession(t, stubConfig(0))
	var toks []string
	res, err := s.GenerateStream(testCtx(t), GenerationRequest{Prompt: "a b c", SystemPrompt: "sys", MaxTokens: 32}, func(tok string) error {
		toks = append(toks, tok)
		return nil
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if strings.Join(toks, "") != res.Text || len(toks) != res.TokensProduced {
		t.Fatalf("streamed %q (%d) vs result %q (%d)", toks, len(toks), res.Text, res.TokensProduced)
	}
}

func TestGenerateStreamSinkError(t *testing.T) {
	s := loadedSession(t, stubConfig(0))
	stop := errors.New("client gone")
	n := 0
	res, err := s.GenerateStream(testCtx(t), GenerationRequest{Prompt: "a b c d", MaxTokens: 32}, func(string) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || !IsCanceled(err) || res.ErrorKind != KindCanceled || res.Finished {
		t.Fatalf("err=%v res=%+v", err, res)
	}
	if res.TokensProduced != 1 {
		t.Fatalf("tokens=%d", res.TokensProduced)
	}
	if !s.IsReady() {
		t.Fatalf("sink error must leave the model ready, have %s", s.State())
	}
}

func TestGenerateTransientRetry(t *testing.T) {
	eng := &fakeEngine{tokens: []string{"ok"}, genErrs: []error{engine.ErrTransient}}
	pub := NewMemoryPublisher()
	s := loadedSession(t, Config{Engine: eng, Publisher: pub})
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4})
	if err != nil || res.Text != "ok" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if _, _, gens := eng.counts(); gens != 2 {
		t.Fatalf("gens=%d", gens)
	}
	var retries int
	for _, n := range pub.Names() {
		if n == EventGenerateRetry {
			retries++
		}
	}
	if retries != 1 {
		t.Fatalf("retry events=%d names=%v", retries, pub.Names())
	}
}

func TestGenerateRetryExhaustion(t *testing.T) {
	eng := &fakeEngine{tokens: []string{"ok"}, genErrs: []error{engine.ErrTransient, engine.ErrTransient, engine.ErrTransient}}
	s := loadedSession(t, Config{Engine: eng})
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4})
	if !IsEngineFailure(err) || !errors.Is(err, engine.ErrTransient) || res.ErrorKind != KindEngineFailure {
		t.Fatalf("err=%v kind=%s", err, res.ErrorKind)
	}
	if _, _, gens := eng.counts(); gens != 3 {
		t.Fatalf("gens=%d, want 1 attempt + 2 retries", gens)
	}
	if s.State() != StateFailed || s.IsReady() {
		t.Fatalf("state=%s", s.State())
	}
	if _, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4}); !IsNotLoaded(err) {
		t.Fatalf("generate while failed: %v", err)
	}

	path := s.Snapshot().ModelPath
	s.Unload()
	if _, err := s.Load(testCtx(t), path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4}); err != nil || res.Text != "ok" {
		t.Fatalf("after recovery: res=%+v err=%v", res, err)
	}
}

func TestGenerateRetriesDisabled(t *testing.T) {
	eng := &fakeEngine{tokens: []string{"ok"}, genErrs: []error{engine.ErrTransient}}
	s := loadedSession(t, Config{Engine: eng, MaxRetries: -1})
	if _, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4}); !IsEngineFailure(err) {
		t.Fatalf("err=%v", err)
	}
	if _, _, gens := eng.counts(); gens != 1 {
		t.Fatalf("gens=%d", gens)
	}
}

func TestGenerateNoRetryAfterTokens(t *testing.T) {
	eng := &fakeEngine{tokens: []string{"a ", "b"}, genErrs: []error{engine.ErrTransient}, tokensBeforeErr: 1}
	s := loadedSession(t, Config{Engine: eng})
	res, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4})
	if !IsEngineFailure(err) {
		t.Fatalf("err=%v", err)
	}
	if res.Text != "a " || res.TokensProduced != 1 {
		t.Fatalf("partial result lost: %+v", res)
	}
	if _, _, gens := eng.counts(); gens != 1 {
		t.Fatalf("gens=%d", gens)
	}
}

func TestGenerateNonTransientFailsOnce(t *testing.T) {
	eng := &fakeEngine{tokens: []string{"ok"}, genErrs: []error{errors.New("device lost")}}
	s := loadedSession(t, Config{Engine: eng})
	if _, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4}); !IsEngineFailure(err) {
		t.Fatalf("err=%v", err)
	}
	if _, _, gens := eng.counts(); gens != 1 {
		t.Fatalf("gens=%d", gens)
	}
	if s.State() != StateFailed {
		t.Fatalf("state=%s", s.State())
	}
	if s.LastError() == nil || KindOf(s.LastError()) != KindEngineFailure {
		t.Fatalf("lastError=%v", s.LastError())
	}
}

func TestGenerateEvents(t *testing.T) {
	pub := NewMemoryPublisher()
	s := loadedSession(t, Config{Engine: engine.NewStub(0), Publisher: pub})
	if _, err := s.Generate(testCtx(t), GenerationRequest{Prompt: "x", MaxTokens: 4}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	s.Unload()
	want := []string{EventLoadStart, EventLoadReady, EventGenerateStart, EventGenerateDone, EventUnloadDone}
	got := pub.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v want %v", got, want)
	}
	for _, e := range pub.Events() {
		if e.SessionID != s.ID() {
			t.Fatalf("event %s carries session %s", e.Name, e.SessionID)
		}
	}
}
