package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_ = json.NewEncoder(w).Encode(modelsResponse{Data: []ModelInfo{{ID: "m1", MaxModelLen: 4096}}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "m1", models[0].ID)
	assert.Equal(t, 4096, models[0].MaxModelLen)
}

func TestChatCompletionReturnsFirstChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "m1", req.Model)

		resp := ChatResponse{}
		resp.Choices = []struct {
			Message      Message `json:"message"`
			FinishReason string  `json:"finish_reason"`
		}{
			{Message: Message{Role: RoleAssistant, Content: "hello"}, FinishReason: "stop"},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	msg, finish, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model:    "m1",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "stop", finish)
}

func TestChatCompletionErrorsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, _, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m1"})
	require.Error(t, err)

	var boundaryErr *BoundaryError
	require.ErrorAs(t, err, &boundaryErr)
	assert.Equal(t, ErrorKindUnavailable, boundaryErr.Kind)
}

func TestChatCompletionClassifiesTransportFailureAsBoundaryError(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", time.Second)
	_, _, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m1"})
	require.Error(t, err)

	var boundaryErr *BoundaryError
	require.ErrorAs(t, err, &boundaryErr)
	assert.Equal(t, ErrorKindUnavailable, boundaryErr.Kind)
}

func TestChatCompletionClassifiesDeadlineExceededAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := client.ChatCompletion(ctx, ChatRequest{Model: "m1"})
	require.Error(t, err)

	var boundaryErr *BoundaryError
	require.ErrorAs(t, err, &boundaryErr)
	assert.Equal(t, ErrorKindTimeout, boundaryErr.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestChatCompletionErrorsOnNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ChatResponse{})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, _, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m1"})
	require.Error(t, err)
}
