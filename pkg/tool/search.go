package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tarsy-labs/mlm/pkg/llm"
)

// SearchResult is one hit returned by SearchService.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchClient calls the collaborator SearchService (spec §6).
type SearchClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSearchClient(baseURL string, timeout time.Duration) *SearchClient {
	return &SearchClient{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// Search calls POST /api/search {query, max_results}.
func (c *SearchClient) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	body, err := json.Marshal(struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", llm.ClassifyTransportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("search: status %d", resp.StatusCode)
		return nil, fmt.Errorf("%w", llm.ClassifyStatusErr(statusErr))
	}

	var parsed struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}
	return parsed.Results, nil
}
