// Package client provides a REST client for the reverie server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/reverie-ai/reverie/internal/metrics"
	"github.com/reverie-ai/reverie/internal/models"
)

// Client talks to the reverie server's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses REVERIE_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via REVERIE_CLIENT_TIMEOUT env var (default 30s; jobs run async).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("REVERIE_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := 30 * time.Second
	if t := os.Getenv("REVERIE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// errorResponse is the server's error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// do sends one JSON request. A nil in sends no body; a nil out discards
// the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			return fmt.Errorf("server error: %s", er.Error)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TYPES (matching the server's wire format)
// =============================================================================

// Job represents a background ingestion job.
type Job struct {
	ID           string                   `json:"id"`
	Type         string                   `json:"type"`
	Status       string                   `json:"status"`
	CharacterIDs []string                 `json:"character_ids,omitempty"`
	Progress     int                      `json:"progress"`
	Total        int                      `json:"total"`
	Results      []models.CharacterResult `json:"results,omitempty"`
	Error        string                   `json:"error,omitempty"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// CharacterSummary is one entry of the character listing.
type CharacterSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ComponentHealth is one component's health probe result.
type ComponentHealth struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Detail    string `json:"detail,omitempty"`
}

// HealthStatus is the server's aggregate health report.
type HealthStatus struct {
	Healthy    bool              `json:"healthy"`
	Components []ComponentHealth `json:"components"`
}

// MemoryInput is the payload for recording a conversation memory.
type MemoryInput struct {
	Content         string            `json:"content"`
	EmotionalWeight *float64          `json:"emotional_weight,omitempty"`
	Importance      models.Importance `json:"importance,omitempty"`
}

// =============================================================================
// INGEST OPERATIONS
// =============================================================================

// IngestCharacter starts an async ingestion job for one character.
func (c *Client) IngestCharacter(ctx context.Context, characterID string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/characters/"+characterID+"/ingest", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// IngestAll starts an async ingestion job covering every character.
func (c *Client) IngestAll(ctx context.Context) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodPost, "/v1/ingest", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// =============================================================================
// RETRIEVAL OPERATIONS
// =============================================================================

type contextRequest struct {
	Message string               `json:"message"`
	Options *models.QueryOptions `json:"options,omitempty"`
}

// GetContext retrieves the dialogue context for a character and message.
func (c *Client) GetContext(ctx context.Context, characterID, message string, opts *models.QueryOptions) (*models.RetrievalContext, error) {
	var rc models.RetrievalContext
	req := contextRequest{Message: message, Options: opts}
	if err := c.do(ctx, http.MethodPost, "/v1/characters/"+characterID+"/context", req, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// RecordMemory writes one conversation memory back to the character.
func (c *Client) RecordMemory(ctx context.Context, characterID string, input MemoryInput) error {
	return c.do(ctx, http.MethodPost, "/v1/characters/"+characterID+"/memories", input, nil)
}

// =============================================================================
// CHARACTER OPERATIONS
// =============================================================================

// ListCharacters returns every character the server knows about.
func (c *Client) ListCharacters(ctx context.Context) ([]CharacterSummary, error) {
	var chars []CharacterSummary
	if err := c.do(ctx, http.MethodGet, "/v1/characters", nil, &chars); err != nil {
		return nil, err
	}
	return chars, nil
}

// =============================================================================
// JOB OPERATIONS
// =============================================================================

// ListJobs returns all background jobs, most recent first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob retrieves a job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// =============================================================================
// STATUS OPERATIONS
// =============================================================================

// Health returns the server's component health report. A degraded server
// answers 503 but still carries the report, so the status code is not an
// error here.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, string(raw))
	}

	var hs HealthStatus
	if err := json.Unmarshal(raw, &hs); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &hs, nil
}

// Metrics returns the server's runtime statistics.
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/metrics", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
