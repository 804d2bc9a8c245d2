package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultChunkSize stays well below the input ceiling of the synthesis
	// engines.
	DefaultChunkSize    = 2000
	DefaultChunkTimeout = 60 * time.Second
	DefaultVoice        = "ar-AE-HamdanNeural"
)

var (
	// ErrNoText is returned when the markup holds nothing to narrate.
	ErrNoText = errors.New("no text to synthesize")
	// ErrNoAudio is returned when every chunk failed.
	ErrNoAudio = errors.New("no audio produced")
)

// Synthesizer turns one chunk of plain text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Stats describes one narration.
type Stats struct {
	Chars     int `json:"chars" yaml:"chars"`
	Requested int `json:"requested" yaml:"requested"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Dropped   int `json:"dropped" yaml:"dropped"`
	Bytes     int `json:"bytes" yaml:"bytes"`
}

// NarratorConfig configures a Narrator.
type NarratorConfig struct {
	Synthesizer  Synthesizer
	Joiner       Joiner // defaults to ByteJoiner
	Voice        string
	ChunkSize    int
	ChunkTimeout time.Duration
	Logger       *slog.Logger
}

// Narrator chunks text and stitches the synthesized audio.
type Narrator struct {
	synth        Synthesizer
	joiner       Joiner
	voice        string
	chunkSize    int
	chunkTimeout time.Duration
	logger       *slog.Logger
}

// NewNarrator creates a Narrator.
func NewNarrator(cfg NarratorConfig) (*Narrator, error) {
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}
	if cfg.Joiner == nil {
		cfg.Joiner = ByteJoiner{}
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = DefaultChunkTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Narrator{
		synth:        cfg.Synthesizer,
		joiner:       cfg.Joiner,
		voice:        cfg.Voice,
		chunkSize:    cfg.ChunkSize,
		chunkTimeout: cfg.ChunkTimeout,
		logger:       cfg.Logger,
	}, nil
}

// CheckTools reports a missing engine or joiner binary before any chunk is
// synthesized.
func (n *Narrator) CheckTools() error {
	for _, c := range []any{n.synth, n.joiner} {
		if tc, ok := c.(interface{ CheckAvailable() error }); ok {
			if err := tc.CheckAvailable(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Voice returns the configured voice.
func (n *Narrator) Voice() string {
	return n.voice
}

// Synthesize narrates page markup.
func (n *Narrator) Synthesize(ctx context.Context, markup string) ([]byte, *Stats, error) {
	return n.SynthesizeText(ctx, PlainText(markup))
}

// SynthesizeText narrates text that is already plain. Failed chunks are
// dropped with a warning; the call fails only when none succeed or ctx is
// cancelled.
func (n *Narrator) SynthesizeText(ctx context.Context, text string) ([]byte, *Stats, error) {
	chunks := Chunk(text, n.chunkSize)
	stats := &Stats{Chars: len([]rune(text)), Requested: len(chunks)}
	if len(chunks) == 0 {
		return nil, stats, ErrNoText
	}

	segments := make([][]byte, 0, len(chunks))
	var lastErr error
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		audio, err := n.synthesizeChunk(ctx, chunk)
		if err != nil {
			stats.Dropped++
			lastErr = err
			n.logger.Warn("dropping speech chunk",
				"chunk", i+1,
				"of", len(chunks),
				"chars", len([]rune(chunk)),
				"error", err)
			continue
		}
		segments = append(segments, audio)
	}
	stats.Succeeded = len(segments)

	var audio []byte
	switch len(segments) {
	case 0:
		return nil, stats, fmt.Errorf("%w: %d chunks failed, last error: %v", ErrNoAudio, len(chunks), lastErr)
	case 1:
		audio = segments[0]
	default:
		joined, err := n.joiner.Join(ctx, segments)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to join audio: %w", err)
		}
		audio = joined
	}
	stats.Bytes = len(audio)

	n.logger.Debug("narration complete",
		"chunks", stats.Requested,
		"dropped", stats.Dropped,
		"bytes", stats.Bytes)
	return audio, stats, nil
}

func (n *Narrator) synthesizeChunk(ctx context.Context, chunk string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.chunkTimeout)
	defer cancel()

	audio, err := n.synth.Synthesize(ctx, chunk, n.voice)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s: %w", n.chunkTimeout, err)
		}
		return nil, err
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesizer returned no audio")
	}
	return audio, nil
}
