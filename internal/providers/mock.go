package providers

import (
	"context"
	"errors"
	"sync"
	"time"
)

const MockClientName = "mock"

// ErrMockExhausted is returned once a MockVisionClient runs out of
// scripted responses and has no fallback.
var ErrMockExhausted = errors.New("mock: no scripted response")

// MockResponse is one scripted reply.
type MockResponse struct {
	Content string
	Err     error
	Delay   time.Duration
}

// MockVisionClient is a VisionClient for testing. It replays Responses in
// order, then Fallback if set.
type MockVisionClient struct {
	mu        sync.Mutex
	responses []MockResponse
	fallback  *MockResponse
	requests  []VisionRequest
}

// NewMockVisionClient creates a mock that replays responses in order.
func NewMockVisionClient(responses ...MockResponse) *MockVisionClient {
	return &MockVisionClient{responses: responses}
}

// WithFallback sets the reply used once the script is exhausted.
func (m *MockVisionClient) WithFallback(r MockResponse) *MockVisionClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &r
	return m
}

// Name returns the client identifier.
func (m *MockVisionClient) Name() string {
	return MockClientName
}

// Complete records the request and returns the next scripted reply.
func (m *MockVisionClient) Complete(ctx context.Context, req *VisionRequest) (*VisionResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	var next MockResponse
	switch {
	case len(m.responses) > 0:
		next = m.responses[0]
		m.responses = m.responses[1:]
	case m.fallback != nil:
		next = *m.fallback
	default:
		m.mu.Unlock()
		return nil, ErrMockExhausted
	}
	m.mu.Unlock()

	if next.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(next.Delay):
		}
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &VisionResult{Content: next.Content, ModelUsed: MockClientName}, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockVisionClient) Requests() []VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]VisionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests seen.
func (m *MockVisionClient) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

var _ VisionClient = (*MockVisionClient)(nil)
