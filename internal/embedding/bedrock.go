package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultBedrockModel is the Titan text embedding model.
	DefaultBedrockModel = "amazon.titan-embed-text-v2:0"

	// DefaultBedrockDimension is the default for titan-embed-text-v2.
	// The model also supports 256 and 512 via the dimensions parameter.
	DefaultBedrockDimension = 1024
)

// BedrockClient implements Embedder using Amazon Titan embeddings
// through the Bedrock runtime.
type BedrockClient struct {
	client    *bedrockruntime.Client
	model     string
	dimension int
}

// Compile-time check that BedrockClient implements Embedder.
var _ Embedder = (*BedrockClient)(nil)

// NewBedrockClient creates a Bedrock embedding client from the ambient
// AWS credential chain. If region is empty, the chain's region is used.
func NewBedrockClient(ctx context.Context, region, model string, expectedDimension int) (*BedrockClient, error) {
	if model == "" {
		model = DefaultBedrockModel
	}
	if expectedDimension == 0 {
		expectedDimension = DefaultBedrockDimension
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockClient{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		model:     model,
		dimension: expectedDimension,
	}, nil
}

// Model returns the configured embedding model name.
func (c *BedrockClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *BedrockClient) Dimension() int {
	return c.dimension
}

// titanRequest is the InvokeModel body for Titan text embeddings.
type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

// titanResponse is the InvokeModel response body.
type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed generates an embedding vector for the given text.
func (c *BedrockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{
		InputText:  text,
		Dimensions: c.dimension,
		Normalize:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bedrock invoke: %v", ErrProvider, err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}

	if len(resp.Embedding) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d (model: %s)",
			ErrProvider, len(resp.Embedding), c.dimension, c.model)
	}

	return resp.Embedding, nil
}

// EmbedBatch embeds texts sequentially; Titan has no batch endpoint.
func (c *BedrockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Health probes the model with a minimal embed request.
func (c *BedrockClient) Health(ctx context.Context) error {
	_, err := c.Embed(ctx, "ping")
	return err
}
