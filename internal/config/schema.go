package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds kitab configuration.
// Stored at: ~/.kitab/config.yaml
type Config struct {
	Oracle OracleConfig `mapstructure:"oracle" yaml:"oracle" json:"oracle"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store" json:"store"`
	Defra  DefraConfig  `mapstructure:"defra" yaml:"defra" json:"defra"`
	Raster RasterConfig `mapstructure:"raster" yaml:"raster" json:"raster"`
	Speech SpeechConfig `mapstructure:"speech" yaml:"speech" json:"speech"`
	Export ExportConfig `mapstructure:"export" yaml:"export" json:"export"`
}

// OracleConfig configures the vision oracle used for extraction.
type OracleConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Model   string `mapstructure:"model" yaml:"model" json:"model"`
	// APIKeys are tried in order, rotating on failure. Entries support
	// ${ENV_VAR} syntax and may hold comma-separated lists.
	APIKeys        []string `mapstructure:"api_keys" yaml:"api_keys" json:"api_keys"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
	PageDelayMS    int      `mapstructure:"page_delay_ms" yaml:"page_delay_ms" json:"page_delay_ms"`
	MaxTokens      int      `mapstructure:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
}

// StoreConfig selects the page store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"` // sqlite, defra or memory
	// Path is the SQLite file; empty uses ~/.kitab/kitab.db.
	Path     string `mapstructure:"path" yaml:"path" json:"path"`
	DefraURL string `mapstructure:"defra_url" yaml:"defra_url" json:"defra_url"`
}

// DefraConfig holds DefraDB container configuration.
type DefraConfig struct {
	// ContainerName is the Docker container name (default: derived from home path)
	ContainerName string `mapstructure:"container_name" yaml:"container_name" json:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image" json:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port" json:"port"`
	// AutoStart starts the container when the defra backend is opened.
	AutoStart bool `mapstructure:"auto_start" yaml:"auto_start" json:"auto_start"`
}

// RasterConfig configures page rendering.
type RasterConfig struct {
	Pdftoppm string `mapstructure:"pdftoppm" yaml:"pdftoppm" json:"pdftoppm"`
}

// SpeechConfig configures narration.
type SpeechConfig struct {
	Engine              string `mapstructure:"engine" yaml:"engine" json:"engine"` // edge or openai
	Voice               string `mapstructure:"voice" yaml:"voice" json:"voice"`
	EdgeBinary          string `mapstructure:"edge_binary" yaml:"edge_binary" json:"edge_binary"`
	ChunkSize           int    `mapstructure:"chunk_size" yaml:"chunk_size" json:"chunk_size"`
	ChunkTimeoutSeconds int    `mapstructure:"chunk_timeout_seconds" yaml:"chunk_timeout_seconds" json:"chunk_timeout_seconds"`
	Joiner              string `mapstructure:"joiner" yaml:"joiner" json:"joiner"` // bytes or ffmpeg
	StripTags           bool   `mapstructure:"strip_tags" yaml:"strip_tags" json:"strip_tags"`
	FFmpeg              string `mapstructure:"ffmpeg" yaml:"ffmpeg" json:"ffmpeg"`
	OpenAIAPIKey        string `mapstructure:"openai_api_key" yaml:"openai_api_key" json:"openai_api_key"`
	OpenAIModel         string `mapstructure:"openai_model" yaml:"openai_model" json:"openai_model"`
	OpenAIVoice         string `mapstructure:"openai_voice" yaml:"openai_voice" json:"openai_voice"`
	OpenAIInstructions  string `mapstructure:"openai_instructions" yaml:"openai_instructions" json:"openai_instructions"`
}

// ExportConfig configures document export.
type ExportConfig struct {
	Font   string `mapstructure:"font" yaml:"font" json:"font"`
	SizePt int    `mapstructure:"size_pt" yaml:"size_pt" json:"size_pt"`
}

// OracleKeys returns the resolved, non-empty oracle credentials in order.
func (c *Config) OracleKeys() []string {
	var keys []string
	for _, raw := range c.Oracle.APIKeys {
		for _, k := range strings.Split(ResolveEnvVars(raw), ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// OracleTimeout is the per-call oracle timeout.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// PageDelay is the spacing between oracle calls.
func (c *Config) PageDelay() time.Duration {
	return time.Duration(c.Oracle.PageDelayMS) * time.Millisecond
}

// ChunkTimeout is the per-chunk synthesis timeout.
func (c *Config) ChunkTimeout() time.Duration {
	return time.Duration(c.Speech.ChunkTimeoutSeconds) * time.Second
}

// OpenAIKey returns the resolved OpenAI TTS key.
func (c *Config) OpenAIKey() string {
	return ResolveEnvVars(c.Speech.OpenAIAPIKey)
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "defra", "memory":
	default:
		return fmt.Errorf("store.backend must be sqlite, defra or memory, got %q", c.Store.Backend)
	}
	switch c.Speech.Engine {
	case "edge", "openai":
	default:
		return fmt.Errorf("speech.engine must be edge or openai, got %q", c.Speech.Engine)
	}
	switch c.Speech.Joiner {
	case "bytes", "ffmpeg":
	default:
		return fmt.Errorf("speech.joiner must be bytes or ffmpeg, got %q", c.Speech.Joiner)
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		return fmt.Errorf("oracle.timeout_seconds must be positive")
	}
	if c.Oracle.PageDelayMS < 0 {
		return fmt.Errorf("oracle.page_delay_ms must not be negative")
	}
	return nil
}
