package llm

import (
	"context"
	"errors"
	"net"
)

// ErrorKind classifies a downstream HTTP failure against a model endpoint
// (or, reused by pkg/tool, against SearchService/SandboxService) so the
// API layer can re-map it to a client-facing status at the boundary
// (spec §7: "downstream errors … are classified at the boundary and
// re-wrapped with a short machine-readable kind and a human-readable
// reason").
type ErrorKind string

const (
	// ErrorKindTimeout means the call exceeded its deadline.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindUnavailable means the downstream service could not be
	// reached, or reached but refused the call.
	ErrorKindUnavailable ErrorKind = "unavailable"
)

// BoundaryError wraps a downstream failure with its Kind, preserving the
// original error via Unwrap so callers can still errors.Is/As through it.
type BoundaryError struct {
	Kind ErrorKind
	Err  error
}

func (e *BoundaryError) Error() string { return e.Err.Error() }

func (e *BoundaryError) Unwrap() error { return e.Err }

// ClassifyTransportErr classifies a failure from http.Client.Do — a
// connection that was refused, reset, timed out, or never reached the
// peer.
func ClassifyTransportErr(err error) *BoundaryError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &BoundaryError{Kind: ErrorKindTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &BoundaryError{Kind: ErrorKindTimeout, Err: err}
	}
	return &BoundaryError{Kind: ErrorKindUnavailable, Err: err}
}

// ClassifyStatusErr classifies a non-2xx HTTP response from a downstream
// collaborator: the peer was reachable but refused or failed the call.
func ClassifyStatusErr(err error) *BoundaryError {
	return &BoundaryError{Kind: ErrorKindUnavailable, Err: err}
}
