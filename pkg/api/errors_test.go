package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tarsy-labs/mlm/pkg/llm"
)

func TestClassifyMapsBoundaryTimeoutTo503(t *testing.T) {
	err := fmt.Errorf("tool: model call failed: %w", &llm.BoundaryError{Kind: llm.ErrorKindTimeout, Err: errors.New("deadline exceeded")})

	apiErr := classify(err)
	assert.Equal(t, KindTimeout, apiErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, statusForKind(apiErr.Kind))
}

func TestClassifyMapsBoundaryUnavailableTo503(t *testing.T) {
	err := fmt.Errorf("tool: model call failed: %w", &llm.BoundaryError{Kind: llm.ErrorKindUnavailable, Err: errors.New("connection refused")})

	apiErr := classify(err)
	assert.Equal(t, KindUpstreamUnavailable, apiErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, statusForKind(apiErr.Kind))
}

func TestClassifyFallsBackToInternalForUnrecognizedError(t *testing.T) {
	apiErr := classify(errors.New("boom"))
	assert.Equal(t, KindInternal, apiErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, statusForKind(apiErr.Kind))
}
