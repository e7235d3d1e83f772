package types

// LoadRequest is the body of POST /load and POST /sessions/{id}/load.
type LoadRequest struct {
	// Filesystem path of the model to load. A leading ~ is expanded.
	// example: ~/models/tinyllama.Q4_K_M.gguf
	Path string `json:"path" example:"~/models/tinyllama.Q4_K_M.gguf"`
}

// LoadResponse reports the outcome of a load.
type LoadResponse struct {
	// True when the model is loaded and the session is ready.
	// example: true
	OK bool `json:"ok" example:"true"`
	// Session state after the load attempt.
	// example: ready
	State string `json:"state" example:"ready"`
}

// GenerateRequest is the body of POST /generate and POST /sessions/{id}/generate.
type GenerateRequest struct {
	// Required user prompt.
	// example: 2+2=
	Prompt string `json:"prompt" example:"2+2="`
	// Optional system prompt prepended by the engine template.
	// example: You are terse.
	SystemPrompt string `json:"system_prompt,omitempty" example:"You are terse."`
	// Upper bound on produced tokens. Zero selects the server default.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// Sampling temperature in [0, 2]. Nil selects the server default.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// If true, stream NDJSON token lines followed by a final summary line.
	// example: false
	Stream bool `json:"stream,omitempty" example:"false"`
}

// GenerateResponse is returned by non-streaming generate calls and as the
// final NDJSON line of streaming ones.
type GenerateResponse struct {
	// Produced text.
	// example: Assistant:\nYou are terse.\n2+2=
	Text string `json:"text" example:"Assistant: hello"`
	// Number of tokens produced by the engine.
	// example: 7
	TokensProduced int `json:"tokens_produced" example:"7"`
	// True when the engine reached a natural end or the token limit.
	// example: true
	Finished bool `json:"finished" example:"true"`
	// Why generation stopped (stop, length, canceled).
	// example: stop
	FinishReason string `json:"finish_reason,omitempty" example:"stop"`
	// Error kind when generation did not complete normally.
	// example: canceled
	ErrorKind string `json:"error_kind,omitempty" example:"canceled"`
	// Set on the final line of a stream.
	Done bool `json:"done,omitempty"`
}

// CreateSessionResponse is returned by POST /sessions.
type CreateSessionResponse struct {
	// Opaque session identifier.
	// example: 6f1c0d8e-3b9a-4d7e-9d2a-1c2b3d4e5f60
	ID string `json:"id" example:"6f1c0d8e-3b9a-4d7e-9d2a-1c2b3d4e5f60"`
}

// ReadyResponse is returned by GET /sessions/{id}/ready.
type ReadyResponse struct {
	// example: true
	Ready bool `json:"ready" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: session not loaded
	Error string `json:"error" example:"session not loaded"`
	// HTTP status code.
	// example: 409
	Code int `json:"code" example:"409"`
	// Machine-readable error kind.
	// example: not_loaded
	Kind string `json:"kind,omitempty" example:"not_loaded"`
}

// SessionStatus summarizes one session for /status.
type SessionStatus struct {
	// example: 6f1c0d8e-3b9a-4d7e-9d2a-1c2b3d4e5f60
	ID string `json:"id"`
	// Lifecycle state (unloaded, loading, ready, generating, failed).
	// example: ready
	State string `json:"state" example:"ready"`
	// Path of the loaded model, if any.
	ModelPath string `json:"model_path,omitempty"`
	// Estimated memory held by the model in MB.
	// example: 638
	ModelSizeMB int `json:"model_size_mb,omitempty" example:"638"`
	// Last error observed by the session.
	LastError string `json:"last_error,omitempty"`
	// Unix seconds of the last successful load or generation.
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix,omitempty" example:"1700000000"`
	// True for the slot served by the unprefixed routes.
	Default bool `json:"default,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active sessions.
	Sessions []SessionStatus `json:"sessions"`
	// Engine name (stub, llama, none).
	// example: stub
	Engine string `json:"engine" example:"stub"`
	// True when the server runs without an engine and echoes prompts.
	EchoMode bool `json:"echo_mode"`
	// Memory budget in MB across all sessions (0 = unlimited).
	// example: 4096
	BudgetMB int `json:"budget_mb" example:"4096"`
	// Estimated memory in MB held by loaded models.
	// example: 638
	UsedMB int `json:"used_est_mb" example:"638"`
	// Server uptime in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}
