// Package health probes liveness of a model's OpenAI-compatible HTTP
// endpoint. It is intentionally stateless — each probe opens a fresh
// connection, acceptable at the low polling cadence of StartupSupervisor,
// its only caller. A model is not probed again once it reaches Running.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Outcome classifies a single probe result.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeHTTPError      Outcome = "http_error"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeTimeout        Outcome = "timeout"
)

// Result carries the classification plus the HTTP status when known.
type Result struct {
	Outcome    Outcome
	HTTPStatus int
}

func (r Result) String() string {
	if r.Outcome == OutcomeHTTPError {
		return fmt.Sprintf("%s(%d)", r.Outcome, r.HTTPStatus)
	}
	return string(r.Outcome)
}

// Prober issues liveness checks against a model endpoint.
type Prober interface {
	Probe(ctx context.Context, host string, port uint16, timeout time.Duration) Result
}

// HTTPProber is the production Prober: GET /v1/models with a bounded
// per-call client (spec §4.6).
type HTTPProber struct{}

func NewHTTPProber() *HTTPProber { return &HTTPProber{} }

func (p *HTTPProber) Probe(ctx context.Context, host string, port uint16, timeout time.Duration) Result {
	url := fmt.Sprintf("http://%s:%d/v1/models", host, port)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Outcome: OutcomeTransportError}
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Outcome: OutcomeTimeout}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Result{Outcome: OutcomeTimeout}
		}
		return Result{Outcome: OutcomeTransportError}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Outcome: OutcomeOK, HTTPStatus: resp.StatusCode}
	}
	return Result{Outcome: OutcomeHTTPError, HTTPStatus: resp.StatusCode}
}
