package defra

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
)

//go:embed schemas/*.graphql
var schemaFS embed.FS

// Schema is one collection definition.
type Schema struct {
	Name string
	SDL  string
}

// collections lists schemas in the order they are applied.
var collections = []string{"Book", "Page"}

// Schemas returns every embedded collection schema in apply order.
func Schemas() ([]Schema, error) {
	out := make([]Schema, 0, len(collections))
	for _, name := range collections {
		content, err := schemaFS.ReadFile(fmt.Sprintf("schemas/%s.graphql", strings.ToLower(name)))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
		}
		out = append(out, Schema{Name: name, SDL: string(content)})
	}
	return out, nil
}

// InitSchemas applies all schemas. Collections that already exist are skipped,
// so it is safe to call on every start.
func InitSchemas(ctx context.Context, client *Client, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	schemas, err := Schemas()
	if err != nil {
		return err
	}

	for _, s := range schemas {
		if err := client.AddSchema(ctx, s.SDL); err != nil {
			// The HTTP API only reports this in the body text.
			if strings.Contains(err.Error(), "already exists") {
				logger.Debug("schema already exists", "name", s.Name)
				continue
			}
			return fmt.Errorf("failed to add schema %s: %w", s.Name, err)
		}
		logger.Info("schema added", "name", s.Name)
	}
	return nil
}
