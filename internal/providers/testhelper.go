package providers

import (
	"os"
)

// TestConfig holds provider keys loaded from environment variables so live
// tests use the same configuration pattern as production.
type TestConfig struct {
	VisionAPIKey string
	OpenAIAPIKey string
}

// LoadTestConfig loads provider API keys from environment variables.
// Returns a TestConfig with whatever keys are available.
func LoadTestConfig() TestConfig {
	vision := os.Getenv("KITAB_ORACLE_KEY")
	if vision == "" {
		vision = os.Getenv("GEMINI_API_KEY")
	}
	return TestConfig{
		VisionAPIKey: vision,
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
	}
}

// HasVision returns true if an oracle key is configured.
func (c TestConfig) HasVision() bool {
	return c.VisionAPIKey != ""
}

// HasOpenAI returns true if an OpenAI key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// NewVisionClient creates a vision client from test config.
// Returns nil if not configured.
func (c TestConfig) NewVisionClient() *OpenAIVisionClient {
	if !c.HasVision() {
		return nil
	}
	return NewOpenAIVisionClient(OpenAIVisionConfig{APIKey: c.VisionAPIKey})
}

// NewOpenAITTSClient creates an OpenAI TTS client from test config.
// Returns nil if not configured.
func (c TestConfig) NewOpenAITTSClient() *OpenAITTSClient {
	if !c.HasOpenAI() {
		return nil
	}
	return NewOpenAITTSClient(OpenAITTSConfig{APIKey: c.OpenAIAPIKey})
}
