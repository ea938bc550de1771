package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostPort(t *testing.T, rawURL string) (string, uint16) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return host, uint16(port)
}

func TestProbeOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	result := NewHTTPProber().Probe(context.Background(), host, port, time.Second)
	assert.Equal(t, OutcomeOK, result.Outcome)
}

func TestProbeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	result := NewHTTPProber().Probe(context.Background(), host, port, time.Second)
	assert.Equal(t, OutcomeHTTPError, result.Outcome)
	assert.Equal(t, http.StatusServiceUnavailable, result.HTTPStatus)
}

func TestProbeTransportErrorOnClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	result := NewHTTPProber().Probe(context.Background(), "127.0.0.1", uint16(port), time.Second)
	assert.Equal(t, OutcomeTransportError, result.Outcome)
}

func TestProbeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := hostPort(t, srv.URL)
	result := NewHTTPProber().Probe(context.Background(), host, port, 5*time.Millisecond)
	assert.Equal(t, OutcomeTimeout, result.Outcome)
}
