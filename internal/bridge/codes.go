package bridge

import (
	"llamabridge/internal/session"
)

// Code is the numeric status surfaced across the native boundary. Values are
// stable; hosts switch on them.
type Code int32

const (
	CodeOK Code = iota
	CodeNotFound
	CodeCorruptFormat
	CodeOutOfMemory
	CodeNotLoaded
	CodeAlreadyLoading
	CodeBusy
	CodeEngineFailure
	CodeInvalidArgument
	CodeUnknownSession
	CodeEngineUnavailable
	CodeCanceled
)

var codeNames = [...]string{
	CodeOK:                "ok",
	CodeNotFound:          "not_found",
	CodeCorruptFormat:     "corrupt_format",
	CodeOutOfMemory:       "out_of_memory",
	CodeNotLoaded:         "not_loaded",
	CodeAlreadyLoading:    "already_loading",
	CodeBusy:              "busy",
	CodeEngineFailure:     "engine_failure",
	CodeInvalidArgument:   "invalid_argument",
	CodeUnknownSession:    "unknown_session",
	CodeEngineUnavailable: "engine_unavailable",
	CodeCanceled:          "canceled",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}

// CodeOf maps an error from the session layer to its boundary code.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case session.IsNotFound(err):
		return CodeNotFound
	case session.IsCorruptFormat(err):
		return CodeCorruptFormat
	case session.IsOutOfMemory(err):
		return CodeOutOfMemory
	case session.IsInvalidRequest(err):
		return CodeInvalidArgument
	case session.IsUnknownSession(err):
		return CodeUnknownSession
	case session.IsNotLoaded(err):
		return CodeNotLoaded
	case session.IsAlreadyLoading(err):
		return CodeAlreadyLoading
	case session.IsBusy(err):
		return CodeBusy
	case session.IsEngineUnavailable(err):
		return CodeEngineUnavailable
	case session.IsCanceled(err):
		return CodeCanceled
	default:
		return CodeEngineFailure
	}
}

// Status is the last error of a Bridge in boundary form.
type Status struct {
	Code    Code
	Message string
}

// OK reports Code == CodeOK.
func (s Status) OK() bool { return s.Code == CodeOK }
