package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamabridge/internal/session"
	"llamabridge/pkg/types"
)

// NewMux builds the bring-up HTTP API.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/models", h.models)
	r.Get("/status", h.status)

	// Default slot.
	r.Post("/load", h.load)
	r.Post("/unload", h.unload)
	r.Post("/generate", h.generate)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", h.destroySession)
			r.Post("/load", h.load)
			r.Post("/unload", h.unload)
			r.Get("/ready", h.ready)
			r.Post("/generate", h.generate)
		})
	})

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; report 400 without size details.
		writeJSONErrorKind(w, http.StatusBadRequest, "invalid JSON body", "invalid_argument")
		return false
	}
	return true
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if models == nil {
		models = []types.Model{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, types.CreateSessionResponse{ID: h.svc.CreateSession()})
}

func (h *handlers) destroySession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DestroySession(chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.SessionReady(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ReadyResponse{Ready: ok})
}

func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	var req types.LoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSONErrorKind(w, http.StatusBadRequest, "path is required", "invalid_argument")
		return
	}
	lvl := requestLogLevel(r)
	start := time.Now()
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	resp, err := h.svc.Load(ctx, chi.URLParam(r, "id"), req.Path)
	if err != nil {
		status := writeErr(w, err)
		logRequest(r, lvl, "load", status, map[string]any{"model_path": req.Path, "dur_ms": time.Since(start).Milliseconds()}, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	logRequest(r, lvl, "load", http.StatusOK, map[string]any{"model_path": req.Path, "dur_ms": time.Since(start).Milliseconds()}, nil)
}

func (h *handlers) unload(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unload(chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LoadResponse{OK: true, State: session.StateUnloaded.String()})
}

// tokenLine is one streamed NDJSON token.
type tokenLine struct {
	Token string `json:"token"`
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Basic validation
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONErrorKind(w, http.StatusBadRequest, "prompt is required", "invalid_argument")
		return
	}
	id := chi.URLParam(r, "id")
	lvl := requestLogLevel(r)
	start := time.Now()

	ctx, cancel := generationContext(r)
	defer cancel()
	if lvl >= LevelInfo && zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path).Str("session", id).Int("max_tokens", req.MaxTokens).Bool("stream", req.Stream)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("generate start")
	}

	if !req.Stream {
		resp, err := h.svc.Generate(ctx, id, req, nil)
		fields := map[string]any{"session": id, "tokens": resp.TokensProduced, "dur_ms": time.Since(start).Milliseconds()}
		if interruptedByShutdown(ctx) {
			fields["shutdown"] = true
		}
		if err != nil && !session.IsCanceled(err) {
			status := writeErr(w, err)
			logRequest(r, lvl, "generate", status, fields, err)
			return
		}
		if err != nil && r.Context().Err() != nil {
			// Client went away; nothing to write.
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logRequest(r, lvl, "generate", http.StatusOK, fields, err)
		return
	}

	// Stream NDJSON. The status line is deferred until the first token so
	// errors raised before generation starts still get a proper status code.
	var (
		writer  = io.Writer(w)
		flush   func()
		started bool
	)
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	if lvl >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{})
	}
	enc := json.NewEncoder(writer)
	begin := func() {
		if !started {
			started = true
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
		}
	}
	resp, err := h.svc.Generate(ctx, id, req, func(tok string) error {
		begin()
		if err := enc.Encode(tokenLine{Token: tok}); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	})
	fields := map[string]any{"session": id, "tokens": resp.TokensProduced, "dur_ms": time.Since(start).Milliseconds(), "stream": true}
	if interruptedByShutdown(ctx) {
		fields["shutdown"] = true
	}
	if err != nil && !started && !session.IsCanceled(err) {
		status := writeErr(w, err)
		logRequest(r, lvl, "generate", status, fields, err)
		return
	}
	if r.Context().Err() != nil {
		return
	}
	begin()
	resp.Done = true
	_ = enc.Encode(resp)
	if flush != nil {
		flush()
	}
	logRequest(r, lvl, "generate", http.StatusOK, fields, err)
}
