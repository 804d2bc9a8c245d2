// Package svcctx carries the wired services through context.Context so CLI
// commands pull what they need without package-level state.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/kitab/internal/config"
	"github.com/jackzampolin/kitab/internal/extract"
	"github.com/jackzampolin/kitab/internal/home"
	"github.com/jackzampolin/kitab/internal/ingest"
	"github.com/jackzampolin/kitab/internal/speech"
	"github.com/jackzampolin/kitab/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store     store.Store
	Session   *extract.Session
	Processor *ingest.Processor
	Narrator  *speech.Narrator
	Config    *config.Manager
	Logger    *slog.Logger
	Home      *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the page store from context.
func StoreFrom(ctx context.Context) store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// SessionFrom extracts the oracle session from context.
func SessionFrom(ctx context.Context) *extract.Session {
	if s := ServicesFrom(ctx); s != nil {
		return s.Session
	}
	return nil
}

// ProcessorFrom extracts the ingestion processor from context.
func ProcessorFrom(ctx context.Context) *ingest.Processor {
	if s := ServicesFrom(ctx); s != nil {
		return s.Processor
	}
	return nil
}

// NarratorFrom extracts the narrator from context.
func NarratorFrom(ctx context.Context) *speech.Narrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Narrator
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
