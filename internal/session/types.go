package session

import (
	"fmt"
	"math"
	"time"
)

// ID is an opaque session identifier.
type ID string

// State is the lifecycle state of a Session.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateGenerating
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateGenerating:
		return "generating"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Bounds accepted by GenerationRequest.Validate.
const (
	MinTemperature = 0
	MaxTemperature = 2
)

// GenerationRequest is one generate call. An empty SystemPrompt means absent.
type GenerationRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// Validate checks the request bounds.
func (r GenerationRequest) Validate() error {
	if r.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidRequest, r.MaxTokens)
	}
	t := float64(r.Temperature)
	if math.IsNaN(t) || t < MinTemperature || t > MaxTemperature {
		return fmt.Errorf("%w: temperature must be in [%d, %d], got %v", ErrInvalidRequest, MinTemperature, MaxTemperature, r.Temperature)
	}
	return nil
}

// ErrorKind classifies why a generation did not complete normally.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNotLoaded
	KindBusy
	KindEngineFailure
	KindCanceled
	KindInvalidRequest
	KindEngineUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindNotLoaded:
		return "not_loaded"
	case KindBusy:
		return "busy"
	case KindEngineFailure:
		return "engine_failure"
	case KindCanceled:
		return "canceled"
	case KindInvalidRequest:
		return "invalid_request"
	case KindEngineUnavailable:
		return "engine_unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// GenerationResult is produced once per request.
type GenerationResult struct {
	Text           string
	TokensProduced int
	Finished       bool
	FinishReason   string
	ErrorKind      ErrorKind
}

// FinishCanceled is reported when a generation stopped before completion.
const FinishCanceled = "canceled"

// Snapshot is a read-only projection of a Session.
type Snapshot struct {
	ID          ID
	State       State
	ModelPath   string
	ModelSizeMB int
	LastError   string
	LastUsed    time.Time
	CreatedAt   time.Time
}
