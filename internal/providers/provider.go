// Package providers holds the clients for external model services: the
// vision oracle that reads page images and the speech engines that
// narrate page text.
package providers

import (
	"context"
	"time"
)

// VisionClient sends a prompt and page images to a vision model.
type VisionClient interface {
	// Complete runs one request. It does not retry.
	Complete(ctx context.Context, req *VisionRequest) (*VisionResult, error)

	// Name returns the client identifier (e.g., "openai").
	Name() string
}

// VisionRequest is one oracle call.
type VisionRequest struct {
	Prompt string
	Images [][]byte // PNG, sent in order after the prompt

	// Model selection (uses client default if empty)
	Model string

	Temperature float64
	MaxTokens   int
}

// VisionResult is the raw oracle reply.
type VisionResult struct {
	Content string `json:"content"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	ModelUsed     string        `json:"model_used"`
	ExecutionTime time.Duration `json:"execution_time"`
}
