package providers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	EdgeTTSName         = "edge"
	EdgeTTSDefaultVoice = "ar-AE-HamdanNeural"
	edgeTTSBinary       = "edge-tts"

	// waitDelay bounds how long a killed subprocess may hold its pipes.
	waitDelay = 2 * time.Second
)

// EdgeTTSConfig configures the edge-tts subprocess engine.
type EdgeTTSConfig struct {
	Binary     string // Defaults to "edge-tts" on PATH
	Voice      string // Defaults to EdgeTTSDefaultVoice
	ScratchDir string // Where the media file is written; "" uses os.TempDir
	Logger     *slog.Logger
}

// EdgeTTS runs the edge-tts command line tool once per call.
type EdgeTTS struct {
	binary     string
	voice      string
	scratchDir string
	logger     *slog.Logger
}

// NewEdgeTTS creates an edge-tts engine.
func NewEdgeTTS(cfg EdgeTTSConfig) *EdgeTTS {
	if cfg.Binary == "" {
		cfg.Binary = edgeTTSBinary
	}
	if cfg.Voice == "" {
		cfg.Voice = EdgeTTSDefaultVoice
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &EdgeTTS{
		binary:     cfg.Binary,
		voice:      cfg.Voice,
		scratchDir: cfg.ScratchDir,
		logger:     cfg.Logger,
	}
}

// Name returns the provider identifier.
func (e *EdgeTTS) Name() string {
	return EdgeTTSName
}

// Voice returns the configured default voice.
func (e *EdgeTTS) Voice() string {
	return e.voice
}

// Synthesize runs edge-tts for text and returns the media it wrote. The
// subprocess is killed when ctx is done.
func (e *EdgeTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	if voice == "" {
		voice = e.voice
	}

	f, err := os.CreateTemp(e.scratchDir, "tts-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create media file: %w", err)
	}
	mediaPath := f.Name()
	f.Close()
	defer func() {
		if err := os.Remove(mediaPath); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove tts scratch file", "path", mediaPath, "error", err)
		}
	}()

	// --text= keeps text that starts with a dash from parsing as a flag.
	cmd := exec.CommandContext(ctx, e.binary,
		"--voice", voice,
		"--text="+text,
		"--write-media", mediaPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("edge-tts interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("edge-tts failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	audio, err := os.ReadFile(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read edge-tts output: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("edge-tts produced no audio")
	}
	return audio, nil
}

// CheckAvailable reports whether the configured binary can be found.
func (e *EdgeTTS) CheckAvailable() error {
	return CheckEdgeTTSAvailable(e.binary)
}

// CheckEdgeTTSAvailable reports whether the edge-tts binary can be found.
func CheckEdgeTTSAvailable(binary string) error {
	if binary == "" {
		binary = edgeTTSBinary
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", binary, err)
	}
	return nil
}
