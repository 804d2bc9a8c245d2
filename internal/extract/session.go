// Package extract turns page images into structured text through the
// vision oracle.
//
// A Session owns the oracle credentials and the index of the one in use.
// Calls are serialized: only one extraction runs at a time, so metadata
// and page extraction never overlap. A failed call advances the index to
// the next credential and reports the failure; it is never retried here.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/kitab/internal/prompts"
	"github.com/jackzampolin/kitab/internal/prompts/metadata"
	"github.com/jackzampolin/kitab/internal/prompts/page"
	"github.com/jackzampolin/kitab/internal/providers"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 120 * time.Second

// ClientFactory builds a vision client for one credential.
type ClientFactory func(apiKey string) providers.VisionClient

// SessionConfig configures a Session.
type SessionConfig struct {
	Credentials []string
	NewClient   ClientFactory
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Session is the process-wide oracle state.
type Session struct {
	mu        sync.Mutex
	creds     []string
	idx       int
	clients   map[string]providers.VisionClient
	newClient ClientFactory
	timeout   time.Duration
	logger    *slog.Logger

	pageSchema *jsonschema.Schema
	metaSchema *jsonschema.Schema
}

// NewSession creates a session starting at the first credential.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.NewClient == nil {
		return nil, fmt.Errorf("client factory is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	pageSchema, err := compile(page.Schema)
	if err != nil {
		return nil, fmt.Errorf("page schema: %w", err)
	}
	metaSchema, err := compile(metadata.Schema)
	if err != nil {
		return nil, fmt.Errorf("metadata schema: %w", err)
	}

	return &Session{
		creds:      append([]string(nil), cfg.Credentials...),
		clients:    make(map[string]providers.VisionClient),
		newClient:  cfg.NewClient,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
		pageSchema: pageSchema,
		metaSchema: metaSchema,
	}, nil
}

func compile(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return providers.CompileSchema(raw)
}

// ActiveIndex returns the index of the credential the next call will use.
func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// Len returns the number of credentials.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds)
}

// SetCredentials replaces the credential list. The index is kept when it
// is still in range and reset to zero otherwise. Waits for any call in
// flight.
func (s *Session) SetCredentials(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append([]string(nil), keys...)
	s.clients = make(map[string]providers.VisionClient)
	if s.idx >= len(s.creds) {
		s.idx = 0
	}
	s.logger.Info("oracle credentials updated", "count", len(s.creds), "active", s.idx)
}

// call runs one oracle request under the session lock, validates the JSON
// object from the reply and decodes it into out. A decode failure rotates
// like any other failure.
func (s *Session) call(ctx context.Context, p prompts.Prompt, images [][]byte, schema *jsonschema.Schema, out any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.creds) == 0 {
		return nil, &Error{Kind: KindTransport, Credential: -1, Err: ErrNoCredentials}
	}

	idx := s.idx
	key := s.creds[idx]
	client, ok := s.clients[key]
	if !ok {
		client = s.newClient(key)
		s.clients[key] = client
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := client.Complete(callCtx, &providers.VisionRequest{
		Prompt: p.Text,
		Images: images,
	})
	if err != nil {
		return nil, s.fail(idx, p, err)
	}

	raw, err := providers.ParseStructured(res.Content, schema)
	if err != nil {
		return nil, s.fail(idx, p, err)
	}
	// The schema accepts integral floats such as 3.0 or 1e20 as integers;
	// they still fail to decode into int fields.
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, s.fail(idx, p, fmt.Errorf("%w: %v", providers.ErrMalformedJSON, err))
	}

	s.logger.Debug("oracle call ok",
		"prompt", p.Key,
		"credential", idx,
		"images", len(images),
		"elapsed", time.Since(start),
		"prompt_tokens", res.PromptTokens,
		"completion_tokens", res.CompletionTokens,
	)
	return raw, nil
}

// fail advances the credential index and wraps err. Must hold s.mu.
func (s *Session) fail(idx int, p prompts.Prompt, err error) error {
	kind := classify(err)
	s.idx = (idx + 1) % len(s.creds)
	s.logger.Warn("oracle call failed, rotating credential",
		"prompt", p.Key,
		"kind", kind,
		"credential", idx,
		"next", s.idx,
		"error", err,
	)
	return &Error{Kind: kind, Credential: idx, Err: err}
}
