// Package config provides configuration for the relay service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the relay configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Conversation store
	DatabasePath string

	// Audio artifact cache
	CacheDir string

	// Speech recognition
	SpeechLanguage string

	// Completion service (Anthropic Messages API)
	AnthropicURL     string
	AnthropicKey     string
	AnthropicModel   string
	AnthropicVersion string

	// Synthesis service (Fish Audio)
	FishURL      string
	FishKey      string
	FishVoiceID  string
	FishTTSModel string

	// Timeouts
	CompletionTimeout time.Duration
	SynthesisTimeout  time.Duration
	TranscribeTimeout time.Duration
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:          getEnvInt("PORT", 8787),
		DatabasePath:      getEnv("DATABASE_PATH", "convo_memory.db"),
		CacheDir:          getEnv("TTS_CACHE_DIR", "tts_cache"),
		SpeechLanguage:    getEnv("SPEECH_LANGUAGE", "en-US"),
		AnthropicURL:      getEnv("ANTHROPIC_URL", "https://api.anthropic.com"),
		AnthropicKey:      anthropicKey(),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", "claude-3-opus-20240229"),
		AnthropicVersion:  getEnv("ANTHROPIC_VERSION", "2023-10-01"),
		FishURL:           getEnv("FISH_API_URL", "https://api.fish.audio"),
		FishKey:           getEnv("FISH_API_KEY", ""),
		FishVoiceID:       getEnv("FISH_VOICE_ID", ""),
		FishTTSModel:      getEnv("FISH_TTS_MODEL", "speech-1.6"),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT_MS", 30000),
		SynthesisTimeout:  getEnvDuration("SYNTHESIS_TIMEOUT_MS", 30000),
		TranscribeTimeout: getEnvDuration("TRANSCRIBE_TIMEOUT_MS", 30000),
	}
}

// anthropicKey checks the alternate credential variable names accepted by the
// service, in order of preference.
func anthropicKey() string {
	for _, name := range []string{"ANTHROPIC_API_KEY", "CLAUDEAPI", "CLAUDE_API_KEY", "ANTHROPIC_KEY"} {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}
