// Package defra talks to a DefraDB node over its HTTP GraphQL API and
// manages the local DefraDB container.
package defra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrUnhealthy is returned when the DefraDB health check fails.
var ErrUnhealthy = errors.New("defra health check failed")

// ServerError is returned for 5xx responses.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("defra server error (status %d): %s", e.StatusCode, e.Body)
}

// Client is a DefraDB HTTP/GraphQL client.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a new DefraDB client.
func NewClient(url string) *Client {
	return &Client{
		url: strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// URL returns the node base URL.
func (c *Client) URL() string {
	return c.url
}

// GQLRequest represents a GraphQL request.
type GQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GQLResponse represents a GraphQL response.
type GQLResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []GQLError     `json:"errors,omitempty"`
}

// GQLError represents a GraphQL error.
type GQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// Error returns the first error message or empty string.
func (r *GQLResponse) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// Decode re-encodes the named data field into out. A missing field leaves
// out untouched.
func (r *GQLResponse) Decode(field string, out any) error {
	raw, ok := r.Data[field]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to re-encode %s: %w", field, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", field, err)
	}
	return nil
}

// HealthCheck checks if DefraDB is healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/health-check", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Execute sends a GraphQL request and returns the response. GraphQL-level
// errors are returned in the response, not as err.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (*GQLResponse, error) {
	bodyBytes, err := json.Marshal(GQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v0/graphql", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("defra returned empty response (status %d)", resp.StatusCode)
	}

	var gqlResp GQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w (body: %s)", err, string(respBody))
	}
	return &gqlResp, nil
}

// AddSchema adds a GraphQL SDL schema to DefraDB.
func (c *Client) AddSchema(ctx context.Context, schema string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/v0/schema", strings.NewReader(schema))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("schema error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Create creates a document in a collection and returns its document ID.
func (c *Client) Create(ctx context.Context, collection string, input map[string]any) (string, error) {
	inputGQL, err := mapToGraphQLInput(input)
	if err != nil {
		return "", fmt.Errorf("failed to build input: %w", err)
	}
	query := fmt.Sprintf(`mutation { create_%s(input: %s) { _docID } }`, collection, inputGQL)

	resp, err := c.Execute(ctx, query, nil)
	if err != nil {
		return "", err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return "", fmt.Errorf("create error: %s", errMsg)
	}
	return firstDocID(resp, "create_"+collection)
}

// Upsert creates or updates a document based on a filter. The filter must
// match zero or one documents.
func (c *Client) Upsert(ctx context.Context, collection string, filter, createInput, updateInput map[string]any) (string, error) {
	filterGQL, err := mapToGraphQLInput(filter)
	if err != nil {
		return "", fmt.Errorf("failed to build filter: %w", err)
	}
	createGQL, err := mapToGraphQLInput(createInput)
	if err != nil {
		return "", fmt.Errorf("failed to build create input: %w", err)
	}
	updateGQL, err := mapToGraphQLInput(updateInput)
	if err != nil {
		return "", fmt.Errorf("failed to build update input: %w", err)
	}

	query := fmt.Sprintf(`mutation { upsert_%s(filter: %s, create: %s, update: %s) { _docID } }`,
		collection, filterGQL, createGQL, updateGQL)

	resp, err := c.Execute(ctx, query, nil)
	if err != nil {
		return "", err
	}
	if errMsg := resp.Error(); errMsg != "" {
		return "", fmt.Errorf("upsert error: %s", errMsg)
	}
	return firstDocID(resp, "upsert_"+collection)
}

func firstDocID(resp *GQLResponse, key string) (string, error) {
	if docs, ok := resp.Data[key].([]any); ok && len(docs) > 0 {
		if doc, ok := docs[0].(map[string]any); ok {
			if docID, ok := doc["_docID"].(string); ok {
				return docID, nil
			}
		}
	}
	return "", fmt.Errorf("unexpected response format: %+v", resp.Data)
}

// mapToGraphQLInput converts a map to GraphQL input object syntax. Keys are
// emitted in sorted order so identical inputs produce identical queries.
func mapToGraphQLInput(input map[string]any) (string, error) {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		valStr, err := valueToGraphQL(input[k])
		if err != nil {
			return "", fmt.Errorf("failed to convert value for key %q: %w", k, err)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, valStr))
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

// valueToGraphQL converts a Go value to GraphQL literal syntax.
func valueToGraphQL(v any) (string, error) {
	switch val := v.(type) {
	case string:
		// JSON string escapes are a subset of what GraphQL accepts; %q is not.
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return "", fmt.Errorf("failed to marshal string: %w", err)
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	case int:
		return fmt.Sprintf("%d", val), nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case float64:
		return fmt.Sprintf("%v", val), nil
	case bool:
		return fmt.Sprintf("%v", val), nil
	case map[string]any:
		return mapToGraphQLInput(val)
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return valueToGraphQL(items)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			itemStr, err := valueToGraphQL(item)
			if err != nil {
				return "", err
			}
			items = append(items, itemStr)
		}
		return "[" + strings.Join(items, ", ") + "]", nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("failed to marshal value: %w", err)
		}
		return string(b), nil
	}
}
