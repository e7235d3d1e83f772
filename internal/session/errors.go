package session

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors; match with errors.Is or the Is* helpers.
var (
	ErrNotLoaded         = errors.New("session: model not loaded")
	ErrAlreadyLoading    = errors.New("session: load already in progress")
	ErrBusy              = errors.New("session: busy")
	ErrEngineFailure     = errors.New("session: engine failure")
	ErrUnknownSession    = errors.New("session: unknown session")
	ErrEngineUnavailable = errors.New("session: no inference engine configured")
	ErrInvalidRequest    = errors.New("session: invalid request")
	ErrCanceled          = errors.New("session: canceled")
)

// LoadErrorKind classifies model open failures.
type LoadErrorKind int

const (
	LoadNotFound LoadErrorKind = iota + 1
	LoadCorruptFormat
	LoadOutOfMemory
)

func (k LoadErrorKind) String() string {
	switch k {
	case LoadNotFound:
		return "not found"
	case LoadCorruptFormat:
		return "corrupt format"
	case LoadOutOfMemory:
		return "out of memory"
	default:
		return "unknown"
	}
}

// LoadError reports a failed ModelHandle open. Loads are never retried.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("load %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AsLoadError extracts a *LoadError from err.
func AsLoadError(err error) (*LoadError, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

func isLoadKind(err error, k LoadErrorKind) bool {
	le, ok := AsLoadError(err)
	return ok && le.Kind == k
}

// IsNotFound reports whether err is a LoadError of kind NotFound.
func IsNotFound(err error) bool { return isLoadKind(err, LoadNotFound) }

// IsCorruptFormat reports whether err is a LoadError of kind CorruptFormat.
func IsCorruptFormat(err error) bool { return isLoadKind(err, LoadCorruptFormat) }

// IsOutOfMemory reports whether err is a LoadError of kind OutOfMemory.
func IsOutOfMemory(err error) bool { return isLoadKind(err, LoadOutOfMemory) }

// engineFailureError wraps the engine error that forced the Failed state.
type engineFailureError struct {
	attempts int
	err      error
}

func (e *engineFailureError) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", ErrEngineFailure, e.attempts, e.err)
}

func (e *engineFailureError) Unwrap() []error { return []error{ErrEngineFailure, e.err} }

// sinkError wraps an error returned by the caller's token callback.
type sinkError struct{ err error }

func (e sinkError) Error() string { return "token sink: " + e.err.Error() }
func (e sinkError) Unwrap() error { return e.err }

// Is makes a stopped consumer count as a cancellation.
func (e sinkError) Is(target error) bool { return target == ErrCanceled }

func IsNotLoaded(err error) bool         { return errors.Is(err, ErrNotLoaded) }
func IsAlreadyLoading(err error) bool    { return errors.Is(err, ErrAlreadyLoading) }
func IsBusy(err error) bool              { return errors.Is(err, ErrBusy) }
func IsEngineFailure(err error) bool     { return errors.Is(err, ErrEngineFailure) }
func IsUnknownSession(err error) bool    { return errors.Is(err, ErrUnknownSession) }
func IsEngineUnavailable(err error) bool { return errors.Is(err, ErrEngineUnavailable) }
func IsInvalidRequest(err error) bool    { return errors.Is(err, ErrInvalidRequest) }

// IsCanceled reports session cancellation as well as raw context errors.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// KindOf maps an error to the ErrorKind carried by GenerationResult.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case IsInvalidRequest(err):
		return KindInvalidRequest
	case IsNotLoaded(err):
		return KindNotLoaded
	case IsBusy(err):
		return KindBusy
	case IsEngineUnavailable(err):
		return KindEngineUnavailable
	case IsCanceled(err):
		return KindCanceled
	default:
		return KindEngineFailure
	}
}
