package svcctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/jackzampolin/kitab/internal/home"
	"github.com/jackzampolin/kitab/internal/store"
)

func TestServices_RoundTrip(t *testing.T) {
	mem := store.NewMemory()
	dir, _ := home.New(t.TempDir())
	logger := slog.New(slog.DiscardHandler)

	ctx := WithServices(context.Background(), &Services{Store: mem, Home: dir, Logger: logger})

	if StoreFrom(ctx) != mem {
		t.Error("StoreFrom returned the wrong store")
	}
	if HomeFrom(ctx) != dir {
		t.Error("HomeFrom returned the wrong dir")
	}
	if LoggerFrom(ctx) != logger {
		t.Error("LoggerFrom returned the wrong logger")
	}
	if SessionFrom(ctx) != nil || NarratorFrom(ctx) != nil || ProcessorFrom(ctx) != nil || ConfigFrom(ctx) != nil {
		t.Error("unset services should be nil")
	}
}

func TestServices_Missing(t *testing.T) {
	ctx := context.Background()
	if ServicesFrom(ctx) != nil || StoreFrom(ctx) != nil || HomeFrom(ctx) != nil {
		t.Error("expected nil services from a bare context")
	}
	if LoggerFrom(ctx) != slog.Default() {
		t.Error("LoggerFrom should fall back to slog.Default")
	}
}
