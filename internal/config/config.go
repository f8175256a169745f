// Package config loads CantinaOS's declarative configuration: viper reads
// a config file plus environment-sourced secrets, go-playground/validator
// checks the result, and the package translates the flat result into each
// service package's own Config type. Grounded on
// api/integration-api/config/config.go's InitConfig/GetApplicationConfig
// pair — env-first precedence, validated struct tags, sane SetDefault
// calls — adapted from that service's Postgres/Redis/host fields to
// CantinaOS's STT/LLM/TTS secrets and per-service tunables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/makeorbreak-studio/cantina-os/internal/debug"
	"github.com/makeorbreak-studio/cantina-os/internal/logging"
	"github.com/makeorbreak-studio/cantina-os/internal/mode"
	"github.com/makeorbreak-studio/cantina-os/internal/music"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/llm"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/mic"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/stt"
	"github.com/makeorbreak-studio/cantina-os/internal/voice/tts"
	"github.com/makeorbreak-studio/cantina-os/internal/web"
)

// AppConfig is the flat, validated shape every field is loaded into
// before being split across the service packages' own Config types.
// mapstructure tags match the env var names viper.AutomaticEnv derives
// them from (upper-snake-case, per InitConfig's convention).
type AppConfig struct {
	ServiceName string `mapstructure:"service_name" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"required"`
	SessionLogDir string `mapstructure:"session_log_dir" validate:"required"`

	WebAddr                    string `mapstructure:"web_addr" validate:"required"`
	WebStatusBroadcastSeconds  int    `mapstructure:"web_status_broadcast_seconds" validate:"required,gt=0"`

	MusicDir             string `mapstructure:"music_dir" validate:"required"`
	MusicNormalVolume    int    `mapstructure:"music_normal_volume" validate:"gte=0,lte=100"`
	MusicDuckingVolume   int    `mapstructure:"music_ducking_volume" validate:"gte=0,lte=100"`
	MusicProgressSeconds int    `mapstructure:"music_progress_seconds" validate:"required,gt=0"`

	ModeGraceSeconds int `mapstructure:"mode_grace_seconds" validate:"required,gt=0"`

	MicSampleRate int `mapstructure:"mic_sample_rate" validate:"required,gt=0"`
	MicChannels   int `mapstructure:"mic_channels" validate:"required,gt=0"`
	MicQueueSize  int `mapstructure:"mic_queue_size" validate:"required,gt=0"`

	SpeechToTextAPIKey    string `mapstructure:"stt_api_key" validate:"required"`
	SpeechToTextMaxRetries int   `mapstructure:"stt_max_retries" validate:"gte=0"`

	LLMAPIKey          string `mapstructure:"llm_api_key" validate:"required"`
	LLMSystemPrompt    string `mapstructure:"llm_system_prompt" validate:"required"`
	LLMMaxTokens       int    `mapstructure:"llm_max_tokens" validate:"required,gt=0"`
	LLMMaxMessages     int    `mapstructure:"llm_max_messages" validate:"required,gt=0"`
	LLMMaxRetries      int    `mapstructure:"llm_max_retries" validate:"gte=0"`
	LLMResetOnTurn     bool   `mapstructure:"llm_reset_on_turn"`
	LLMRateLimitPerMin int    `mapstructure:"llm_rate_limit_per_minute" validate:"required,gt=0"`

	TextToSpeechAPIKey    string `mapstructure:"tts_api_key" validate:"required"`
	TextToSpeechMaxRetries int   `mapstructure:"tts_max_retries" validate:"gte=0"`

	PerformanceThresholds map[string]float64 `mapstructure:"performance_thresholds"`
}

// Load reads cantina.<ext> from the working directory or ./config (or the file named
// by the CANTINA_CONFIG_PATH env var), overlays environment variables
// (CANTINA_ prefixed, e.g. CANTINA_STT_API_KEY), applies defaults for
// every non-secret field, and validates the result. Missing secrets
// (API keys) fail validation rather than silently defaulting, since a
// placeholder key would only surface as a confusing vendor auth error
// later.
func Load() (*AppConfig, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.SetConfigName("cantina")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if path := viperEnvPath(); path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix("cantina")
	v.AutomaticEnv()
	// The secrets have no default, so bind them explicitly or Unmarshal
	// never looks up their environment variables.
	for _, key := range []string{"stt_api_key", "llm_api_key", "tts_api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func viperEnvPath() string {
	return os.Getenv("CANTINA_CONFIG_PATH")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "cantinaos")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_log_dir", "./logs")

	v.SetDefault("web_addr", ":8000")
	v.SetDefault("web_status_broadcast_seconds", 60)

	v.SetDefault("music_dir", "./music")
	v.SetDefault("music_normal_volume", 80)
	v.SetDefault("music_ducking_volume", 20)
	v.SetDefault("music_progress_seconds", 1)

	v.SetDefault("mode_grace_seconds", 3)

	v.SetDefault("mic_sample_rate", 16000)
	v.SetDefault("mic_channels", 1)
	v.SetDefault("mic_queue_size", 64)

	v.SetDefault("stt_max_retries", 3)

	v.SetDefault("llm_system_prompt", "You are DJ R3X, a helpful and enthusiastic Star Wars droid DJ assistant.")
	v.SetDefault("llm_max_tokens", 4000)
	v.SetDefault("llm_max_messages", 20)
	v.SetDefault("llm_max_retries", 3)
	v.SetDefault("llm_reset_on_turn", true)
	v.SetDefault("llm_rate_limit_per_minute", 50)

	v.SetDefault("tts_max_retries", 3)

	v.SetDefault("performance_thresholds", map[string]interface{}{})
}

// LoggingConfig translates the flat config into internal/logging.Config.
func (c *AppConfig) LoggingConfig() (logging.Config, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return logging.Config{}, fmt.Errorf("log_level: %w", err)
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.SessionFilePath = c.SessionLogDir
	return cfg, nil
}

// WebConfig translates the flat config into internal/web.Config.
func (c *AppConfig) WebConfig() web.Config {
	cfg := web.DefaultConfig()
	cfg.Addr = c.WebAddr
	cfg.StatusBroadcastCeiling = time.Duration(c.WebStatusBroadcastSeconds) * time.Second
	return cfg
}

// MusicConfig translates the flat config into internal/music.Config.
func (c *AppConfig) MusicConfig() music.Config {
	cfg := music.DefaultConfig()
	cfg.MusicDir = c.MusicDir
	cfg.NormalVolume = c.MusicNormalVolume
	cfg.DuckingVolume = c.MusicDuckingVolume
	cfg.ProgressInterval = time.Duration(c.MusicProgressSeconds) * time.Second
	return cfg
}

// ModeConfig translates the flat config into internal/mode.Config.
func (c *AppConfig) ModeConfig() mode.Config {
	return mode.Config{GracePeriod: time.Duration(c.ModeGraceSeconds) * time.Second}
}

// MicConfig translates the flat config into internal/voice/mic.Config.
func (c *AppConfig) MicConfig() mic.Config {
	cfg := mic.DefaultConfig()
	cfg.SampleRate = c.MicSampleRate
	cfg.Channels = c.MicChannels
	cfg.QueueSize = c.MicQueueSize
	return cfg
}

// STTConfig translates the flat config into internal/voice/stt.Config.
// The API key is not part of the returned Config: it belongs to the
// vendor stt.Opener implementation wired up alongside this service, an
// external collaborator per SPEC_FULL.md, not this package's concern.
func (c *AppConfig) STTConfig() stt.Config {
	cfg := stt.DefaultConfig()
	cfg.MaxOpenRetries = c.SpeechToTextMaxRetries
	return cfg
}

// LLMConfig translates the flat config into internal/voice/llm.Config.
func (c *AppConfig) LLMConfig() llm.Config {
	return llm.Config{
		MaxTokens:          c.LLMMaxTokens,
		MaxMessages:        c.LLMMaxMessages,
		SystemPrompt:       c.LLMSystemPrompt,
		MaxOpenRetries:     c.LLMMaxRetries,
		ResetOnTurn:        c.LLMResetOnTurn,
		RateLimitPerMinute: c.LLMRateLimitPerMin,
	}
}

// TTSConfig translates the flat config into internal/voice/tts.Config.
func (c *AppConfig) TTSConfig() tts.Config {
	cfg := tts.DefaultConfig()
	cfg.MaxOpenRetries = c.TextToSpeechMaxRetries
	return cfg
}

// DebugConfig translates the flat config into internal/debug.Config.
func (c *AppConfig) DebugConfig() debug.Config {
	cfg := debug.DefaultConfig()
	for op, threshold := range c.PerformanceThresholds {
		cfg.PerformanceThresholds[op] = threshold
	}
	return cfg
}
