package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jackzampolin/kitab/internal/config"
	"github.com/jackzampolin/kitab/internal/defra"
	"github.com/jackzampolin/kitab/internal/extract"
	"github.com/jackzampolin/kitab/internal/home"
	"github.com/jackzampolin/kitab/internal/ingest"
	"github.com/jackzampolin/kitab/internal/providers"
	"github.com/jackzampolin/kitab/internal/raster"
	"github.com/jackzampolin/kitab/internal/speech"
	"github.com/jackzampolin/kitab/internal/store"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

var (
	closersMu sync.Mutex
	closers   []func()
)

func onClose(fn func()) {
	closersMu.Lock()
	defer closersMu.Unlock()
	closers = append(closers, fn)
}

// closeServices releases everything opened by buildServices, newest first.
func closeServices() {
	closersMu.Lock()
	defer closersMu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

func buildBaseServices(logger *slog.Logger) (*svcctx.Services, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	cfgMgr, err := config.NewManager(cfgFile, h.Path(), logger)
	if err != nil {
		return nil, err
	}
	if f := cfgMgr.FileUsed(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	return &svcctx.Services{Config: cfgMgr, Logger: logger, Home: h}, nil
}

// buildServices wires the full service graph from config.
func buildServices(ctx context.Context, logger *slog.Logger) (*svcctx.Services, error) {
	svcs, err := buildBaseServices(logger)
	if err != nil {
		return nil, err
	}
	cfg := svcs.Config.Get()

	st, err := openStore(ctx, cfg, svcs.Home, logger)
	if err != nil {
		return nil, err
	}
	onClose(func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	})
	svcs.Store = st

	// The factory reads the live config so a reload that changes the
	// endpoint takes effect with the next credential swap.
	session, err := extract.NewSession(extract.SessionConfig{
		Credentials: cfg.OracleKeys(),
		NewClient: func(apiKey string) providers.VisionClient {
			cur := svcs.Config.Get()
			return providers.NewOpenAIVisionClient(providers.OpenAIVisionConfig{
				APIKey:    apiKey,
				BaseURL:   cur.Oracle.BaseURL,
				Model:     cur.Oracle.Model,
				MaxTokens: cur.Oracle.MaxTokens,
				Timeout:   cur.OracleTimeout(),
			})
		},
		Timeout: cfg.OracleTimeout(),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	svcs.Session = session

	svcs.Config.OnChange(func(c *config.Config) {
		session.SetCredentials(c.OracleKeys())
	})
	if svcs.Config.FileUsed() != "" {
		svcs.Config.WatchConfig()
	}

	proc, err := ingest.New(ingest.Config{
		Store: st,
		Rasterizer: raster.New(raster.Config{
			Pdftoppm: cfg.Raster.Pdftoppm,
			Logger:   logger,
		}),
		Extractor:  session,
		ScratchDir: svcs.Home.ScratchDir(),
		PageDelay:  cfg.PageDelay(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	svcs.Processor = proc

	narrator, err := newNarrator(cfg, svcs.Home, logger)
	if err != nil {
		return nil, err
	}
	svcs.Narrator = narrator

	return svcs, nil
}

// openStore opens the configured page store backend.
func openStore(ctx context.Context, cfg *config.Config, h *home.Dir, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		logger.Warn("using in-memory store, nothing will be persisted")
		return store.NewMemory(), nil

	case "defra":
		if cfg.Defra.AutoStart {
			node, err := defraContainer(h, cfg, logger)
			if err != nil {
				return nil, err
			}
			defer node.Close()
			if err := node.Check(ctx); err != nil {
				return nil, fmt.Errorf("defra container mismatch: %w", err)
			}
			logger.Info("starting DefraDB", "container", node.Name())
			if err := node.Start(ctx); err != nil {
				return nil, fmt.Errorf("failed to start DefraDB: %w", err)
			}
		}
		return store.OpenDefra(ctx, store.DefraConfig{
			Client: defra.NewClient(cfg.Store.DefraURL),
			Logger: logger,
		})

	default:
		path := cfg.Store.Path
		if path == "" {
			path = h.DatabasePath()
		}
		return store.OpenSQLite(store.SQLiteConfig{Path: path, Logger: logger})
	}
}

// newNarrator builds the narrator for the configured speech engine.
func newNarrator(cfg *config.Config, h *home.Dir, logger *slog.Logger) (*speech.Narrator, error) {
	var (
		synth speech.Synthesizer
		voice = cfg.Speech.Voice
	)
	switch cfg.Speech.Engine {
	case "openai":
		client := providers.NewOpenAITTSClient(providers.OpenAITTSConfig{
			APIKey:       cfg.OpenAIKey(),
			Model:        cfg.Speech.OpenAIModel,
			Voice:        cfg.Speech.OpenAIVoice,
			Instructions: cfg.Speech.OpenAIInstructions,
			Timeout:      cfg.ChunkTimeout(),
		})
		synth = client
		voice = client.Voice()
	default:
		synth = providers.NewEdgeTTS(providers.EdgeTTSConfig{
			Binary:     cfg.Speech.EdgeBinary,
			Voice:      cfg.Speech.Voice,
			ScratchDir: h.ScratchDir(),
			Logger:     logger,
		})
	}

	var joiner speech.Joiner = speech.ByteJoiner{StripTags: cfg.Speech.StripTags}
	if cfg.Speech.Joiner == "ffmpeg" {
		joiner = speech.FFmpegJoiner{Binary: cfg.Speech.FFmpeg, ScratchDir: h.ScratchDir()}
	}

	return speech.NewNarrator(speech.NarratorConfig{
		Synthesizer:  synth,
		Joiner:       joiner,
		Voice:        voice,
		ChunkSize:    cfg.Speech.ChunkSize,
		ChunkTimeout: cfg.ChunkTimeout(),
		Logger:       logger,
	})
}

// defraContainer returns the node container for this home. Without an
// explicit container_name each home gets its own node.
func defraContainer(h *home.Dir, cfg *config.Config, logger *slog.Logger) (*defra.Container, error) {
	dataPath := h.DefraDataPath()
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return defra.NewContainer(defra.ContainerConfig{
		Name:     cfg.Defra.ContainerName,
		HomePath: h.Path(),
		Image:    cfg.Defra.Image,
		Port:     cfg.Defra.Port,
		DataPath: dataPath,
		Logger:   logger,
	})
}
