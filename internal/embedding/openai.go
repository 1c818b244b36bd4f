package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const (
	// DefaultOpenAIModel is the default OpenAI embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimension is the dimension for text-embedding-3-small.
	DefaultOpenAIDimension = 1536

	// OpenAIAPIBase is the default API base URL. Override with the
	// OPENAI_BASE_URL environment variable for proxies or compatible servers.
	OpenAIAPIBase = "https://api.openai.com/v1"
)

// OpenAIClient implements Embedder using the OpenAI embeddings API.
type OpenAIClient struct {
	apiKey    string
	model     string
	dimension int
	endpoint  string
	client    *http.Client
}

// Compile-time check that OpenAIClient implements Embedder.
var _ Embedder = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new OpenAI embedding client.
// If model is empty, uses DefaultOpenAIModel (text-embedding-3-small).
// If expectedDimension is 0, uses DefaultOpenAIDimension (1536).
func NewOpenAIClient(apiKey, model string, expectedDimension int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for OpenAI embeddings")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if expectedDimension == 0 {
		expectedDimension = DefaultOpenAIDimension
	}

	base := OpenAIAPIBase
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		base = strings.TrimRight(v, "/")
	}

	return &OpenAIClient{
		apiKey:    apiKey,
		model:     model,
		dimension: expectedDimension,
		endpoint:  base + "/embeddings",
		client:    &http.Client{},
	}, nil
}

// Model returns the configured embedding model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *OpenAIClient) Dimension() int {
	return c.dimension
}

// openaiRequest is the request format for the embeddings endpoint.
type openaiRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiResponse is the response format from the embeddings endpoint.
type openaiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates an embedding vector for the given text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProvider)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	reqBody := openaiRequest{
		Input: texts,
		Model: c.model,
	}
	// text-embedding-3 models accept a reduced output dimension.
	if c.dimension != DefaultOpenAIDimension {
		reqBody.Dimensions = c.dimension
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: openai API status %d: %s", ErrProvider, resp.StatusCode, string(body))
	}

	var openaiResp openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	if len(openaiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embedding count mismatch: got %d, want %d",
			ErrProvider, len(openaiResp.Data), len(texts))
	}

	// Responses may arrive out of order; place each by its index.
	embeddings := make([][]float32, len(texts))
	for _, d := range openaiResp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("%w: invalid embedding index: %d", ErrProvider, d.Index)
		}
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("%w: embedding %d dimension: got %d, want %d",
				ErrProvider, d.Index, len(d.Embedding), c.dimension)
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}

// Health probes the API with a minimal embed request.
func (c *OpenAIClient) Health(ctx context.Context) error {
	_, err := c.Embed(ctx, "ping")
	return err
}
