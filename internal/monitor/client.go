// Package monitor provides the terminal dashboard for a running convergd
// daemon. It polls the stats endpoint and renders evaluation, cache, and
// identity-resolution activity.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chakssp/convergd/internal/server"
)

// StatsClient fetches daemon statistics over the HTTP API.
type StatsClient struct {
	baseURL string
	client  *http.Client
}

// NewStatsClient creates a client for the given daemon base URL, e.g.
// http://localhost:9090.
func NewStatsClient(baseURL string) *StatsClient {
	return &StatsClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Fetch retrieves a stats snapshot from the daemon.
func (c *StatsClient) Fetch(ctx context.Context) (server.StatsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/stats", nil)
	if err != nil {
		return server.StatsResponse{}, fmt.Errorf("creating stats request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return server.StatsResponse{}, fmt.Errorf("fetching stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return server.StatsResponse{}, fmt.Errorf("stats endpoint returned %d", resp.StatusCode)
	}

	var stats server.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return server.StatsResponse{}, fmt.Errorf("decoding stats response: %w", err)
	}
	return stats, nil
}
