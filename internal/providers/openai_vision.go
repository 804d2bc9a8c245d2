package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIVisionName = "openai"

	// DefaultVisionBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultVisionBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultVisionModel   = "gemini-2.0-flash"
)

// OpenAIVisionConfig holds configuration for the vision client.
type OpenAIVisionConfig struct {
	APIKey     string
	BaseURL    string        // Defaults to DefaultVisionBaseURL
	Model      string        // Defaults to DefaultVisionModel
	MaxTokens  int           // 0 leaves the server default
	Timeout    time.Duration // Per-call HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIVisionClient implements VisionClient over any OpenAI-compatible
// chat completions endpoint.
type OpenAIVisionClient struct {
	model     string
	maxTokens int
	client    openai.Client
}

// NewOpenAIVisionClient creates a vision client. SDK retries are off; a
// failed call is reported once so the caller can rotate credentials.
func NewOpenAIVisionClient(cfg OpenAIVisionConfig) *OpenAIVisionClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultVisionBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultVisionModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAIVisionClient{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    client,
	}
}

// Name returns the client identifier.
func (c *OpenAIVisionClient) Name() string {
	return OpenAIVisionName
}

// Model returns the configured default model.
func (c *OpenAIVisionClient) Model() string {
	return c.model
}

// Complete sends the prompt followed by each image as a base64 data URL.
func (c *OpenAIVisionClient) Complete(ctx context.Context, req *VisionRequest) (*VisionResult, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	start := time.Now()

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Images)+1)
	parts = append(parts, openai.TextContentPart(req.Prompt))
	for _, img := range req.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
		}))
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError("vision", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision response has no choices")
	}

	return &VisionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		ModelUsed:        resp.Model,
		ExecutionTime:    time.Since(start),
	}, nil
}

var _ VisionClient = (*OpenAIVisionClient)(nil)
