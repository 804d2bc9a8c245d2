package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAITTSName         = "openai"
	openAITTSDefaultModel = openai.SpeechModelTTS1HD
	openAITTSDefaultVoice = "onyx"
)

// OpenAITTSVoices is the built-in OpenAI voice list.
var OpenAITTSVoices = []string{
	"alloy", "ash", "ballad", "coral", "echo", "fable", "nova",
	"onyx", "sage", "shimmer", "verse", "marin", "cedar",
}

// OpenAITTSConfig holds configuration for the OpenAI TTS client.
type OpenAITTSConfig struct {
	APIKey       string
	Model        string  // "tts-1-hd" (default), "tts-1", "gpt-4o-mini-tts"
	Voice        string  // "onyx" (default)
	Format       string  // "mp3" (default), "opus", "aac", "flac", "wav", "pcm"
	Speed        float64 // 0.25-4.0
	Instructions string  // Used by gpt-4o-mini-tts
	Timeout      time.Duration
	BaseURL      string       // Optional (tests)
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAITTSClient synthesizes speech with the OpenAI audio API.
type OpenAITTSClient struct {
	model        string
	voice        string
	format       openai.AudioSpeechNewParamsResponseFormat
	speed        float64
	instructions string
	client       openai.Client
}

// NewOpenAITTSClient creates a new OpenAI TTS client. SDK retries are off;
// the narrator drops a failed chunk instead.
func NewOpenAITTSClient(cfg OpenAITTSConfig) *OpenAITTSClient {
	if cfg.Model == "" {
		cfg.Model = openAITTSDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = openAITTSDefaultVoice
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITTSClient{
		model:        cfg.Model,
		voice:        cfg.Voice,
		format:       normalizeOpenAIFormat(cfg.Format),
		speed:        cfg.Speed,
		instructions: cfg.Instructions,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAITTSClient) Name() string {
	return OpenAITTSName
}

// Model returns the configured default model.
func (c *OpenAITTSClient) Model() string {
	return c.model
}

// Voice returns the configured default voice.
func (c *OpenAITTSClient) Voice() string {
	return c.voice
}

// HealthCheck verifies the API is reachable and the key is valid.
func (c *OpenAITTSClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError("OpenAI TTS", err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

// Synthesize converts text to audio. An empty voice uses the default.
func (c *OpenAITTSClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	voice = strings.TrimSpace(voice)
	if voice == "" {
		voice = c.voice
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(c.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: c.format,
		Speed:          openai.Float(c.speed),
	}
	if c.instructions != "" && supportsInstructions(c.model) {
		params.Instructions = openai.String(c.instructions)
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError("OpenAI TTS", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading openai audio response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}
	return audio, nil
}

func supportsInstructions(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	return strings.HasPrefix(m, "gpt-4o-mini-tts")
}

func normalizeOpenAIFormat(format string) openai.AudioSpeechNewParamsResponseFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "opus":
		return openai.AudioSpeechNewParamsResponseFormatOpus
	case "aac":
		return openai.AudioSpeechNewParamsResponseFormatAAC
	case "flac":
		return openai.AudioSpeechNewParamsResponseFormatFLAC
	case "wav":
		return openai.AudioSpeechNewParamsResponseFormatWAV
	case "pcm":
		return openai.AudioSpeechNewParamsResponseFormatPCM
	default:
		return openai.AudioSpeechNewParamsResponseFormatMP3
	}
}
