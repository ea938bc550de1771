package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tarsy-labs/mlm/pkg/lifecycle"
	"github.com/tarsy-labs/mlm/pkg/llm"
	"github.com/tarsy-labs/mlm/pkg/tool"
)

// Kind is the short machine-readable error classification spec §7 defines.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindBusy                Kind = "busy"
	KindInsufficientMemory  Kind = "insufficient_memory"
	KindBadRequest           Kind = "bad_request"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTimeout             Kind = "timeout"
	KindInternal            Kind = "internal"
)

// Error is a classified, client-facing error: a kind plus a human-readable
// reason (spec §7: "re-wrapped with a short machine-readable kind and a
// human-readable reason").
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func wrapError(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// statusForKind is the stable kind -> status mapping spec §7 specifies.
func statusForKind(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindBusy, KindInsufficientMemory:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUpstreamUnavailable, KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// classify maps an error surfaced from the lifecycle/tool layers to a
// client-facing *Error. The gin-idiomatic equivalent of tarsy's
// mapServiceError (pkg/api/errors.go).
func classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var notFound *lifecycle.ErrNotFound
	if errors.As(err, &notFound) {
		return wrapError(KindNotFound, "model not found", err)
	}
	if errors.Is(err, lifecycle.ErrNotInitialized) {
		return wrapError(KindInternal, "catalog not initialized", err)
	}
	if errors.Is(err, tool.ErrModelNotReady) {
		return wrapError(KindUpstreamUnavailable, "model is not running", err)
	}

	var boundaryErr *llm.BoundaryError
	if errors.As(err, &boundaryErr) {
		switch boundaryErr.Kind {
		case llm.ErrorKindTimeout:
			return wrapError(KindTimeout, "downstream call timed out", err)
		default:
			return wrapError(KindUpstreamUnavailable, "downstream service unavailable", err)
		}
	}

	slog.Error("unclassified api error", "error", err)
	return wrapError(KindInternal, "internal server error", err)
}

// writeError classifies err and writes the matching JSON error body.
func writeError(c *gin.Context, err error) {
	apiErr := classify(err)
	status := statusForKind(apiErr.Kind)
	if status == http.StatusInternalServerError {
		slog.Error("internal api error", "reason", apiErr.Reason, "error", apiErr.Err)
	}
	c.JSON(status, gin.H{"error": apiErr.Reason})
}

// rejectKind maps a lifecycle.RejectReason onto the Kind used for its HTTP
// status (spec §6: insufficient_memory and busy both answer 409).
func rejectKind(r lifecycle.RejectReason) Kind {
	if r == lifecycle.RejectInsufficientMemory {
		return KindInsufficientMemory
	}
	return KindBusy
}
