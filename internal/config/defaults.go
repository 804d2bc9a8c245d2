package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/jackzampolin/kitab/internal/defra"
	"github.com/jackzampolin/kitab/internal/export"
	"github.com/jackzampolin/kitab/internal/ingest"
	"github.com/jackzampolin/kitab/internal/providers"
	"github.com/jackzampolin/kitab/internal/speech"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Oracle: OracleConfig{
			BaseURL:        providers.DefaultVisionBaseURL,
			Model:          providers.DefaultVisionModel,
			APIKeys:        []string{"${GEMINI_API_KEY}"},
			TimeoutSeconds: 120,
			PageDelayMS:    int(ingest.DefaultPageDelay / time.Millisecond),
			MaxTokens:      8192,
		},
		Store: StoreConfig{
			Backend:  "sqlite",
			DefraURL: "http://localhost:9181",
		},
		Defra: DefraConfig{
			Image: defra.DefaultImage,
			Port:  defra.DefaultPort,
		},
		Raster: RasterConfig{
			Pdftoppm: "pdftoppm",
		},
		Speech: SpeechConfig{
			Engine:              "edge",
			Voice:               speech.DefaultVoice,
			EdgeBinary:          "edge-tts",
			ChunkSize:           speech.DefaultChunkSize,
			ChunkTimeoutSeconds: int(speech.DefaultChunkTimeout / time.Second),
			Joiner:              "bytes",
			FFmpeg:              "ffmpeg",
			OpenAIAPIKey:        "${OPENAI_API_KEY}",
			OpenAIModel:         "gpt-4o-mini-tts",
			OpenAIVoice:         "onyx",
		},
		Export: ExportConfig{
			Font:   export.DefaultFont,
			SizePt: export.DefaultSizePt,
		},
	}
}

// setDefaults registers every leaf key so environment overrides such as
// KITAB_ORACLE_MODEL resolve.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("oracle.base_url", d.Oracle.BaseURL)
	v.SetDefault("oracle.model", d.Oracle.Model)
	v.SetDefault("oracle.api_keys", d.Oracle.APIKeys)
	v.SetDefault("oracle.timeout_seconds", d.Oracle.TimeoutSeconds)
	v.SetDefault("oracle.page_delay_ms", d.Oracle.PageDelayMS)
	v.SetDefault("oracle.max_tokens", d.Oracle.MaxTokens)

	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.defra_url", d.Store.DefraURL)

	v.SetDefault("defra.container_name", d.Defra.ContainerName)
	v.SetDefault("defra.image", d.Defra.Image)
	v.SetDefault("defra.port", d.Defra.Port)
	v.SetDefault("defra.auto_start", d.Defra.AutoStart)

	v.SetDefault("raster.pdftoppm", d.Raster.Pdftoppm)

	v.SetDefault("speech.engine", d.Speech.Engine)
	v.SetDefault("speech.voice", d.Speech.Voice)
	v.SetDefault("speech.edge_binary", d.Speech.EdgeBinary)
	v.SetDefault("speech.chunk_size", d.Speech.ChunkSize)
	v.SetDefault("speech.chunk_timeout_seconds", d.Speech.ChunkTimeoutSeconds)
	v.SetDefault("speech.joiner", d.Speech.Joiner)
	v.SetDefault("speech.strip_tags", d.Speech.StripTags)
	v.SetDefault("speech.ffmpeg", d.Speech.FFmpeg)
	v.SetDefault("speech.openai_api_key", d.Speech.OpenAIAPIKey)
	v.SetDefault("speech.openai_model", d.Speech.OpenAIModel)
	v.SetDefault("speech.openai_voice", d.Speech.OpenAIVoice)
	v.SetDefault("speech.openai_instructions", d.Speech.OpenAIInstructions)

	v.SetDefault("export.font", d.Export.Font)
	v.SetDefault("export.size_pt", d.Export.SizePt)
}
