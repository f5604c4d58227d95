// Package config loads process configuration from the environment. The
// resulting Config is immutable after startup; changing provider mappings
// requires a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hirepilot/hirepilot/pkg/models"
)

// Defaults for task budgets and the agent loop.
const (
	DefaultMaxAgentTurns       = 8
	DefaultTextTimeout         = 90 * time.Second
	DefaultVideoSegmentTimeout = 10 * time.Minute
	DefaultRenderPollInterval  = 5 * time.Second
	DefaultRenderWorkers       = 2
	DefaultMaxRenderSeconds    = 120.0
)

// Config is the process-wide configuration.
type Config struct {
	HTTPPort string

	// AuthTokens maps bearer tokens to user ids, parsed from
	// HP_AUTH_TOKENS ("token=userId,token2=userId2"). Empty means every
	// request is rejected with 401.
	AuthTokens map[string]string

	// Provider selectors of the form "vendor:model", one per task family.
	// Unmapped task types fall back to ChatProvider.
	ChatProvider    string
	AssetProvider   string
	ChannelProvider string
	ImageProvider   string
	VideoProvider   string

	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	MaxAgentTurns       int
	TextTimeout         time.Duration
	VideoSegmentTimeout time.Duration
	RenderPollInterval  time.Duration
	RenderWorkers       int
	MaxRenderSeconds    float64
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		AuthTokens:      parseTokenMap(os.Getenv("HP_AUTH_TOKENS")),
		ChatProvider:    getEnv("HP_CHAT_PROVIDER", "gemini:gemini-2.5-flash"),
		AssetProvider:   getEnv("HP_ASSET_PROVIDER", ""),
		ChannelProvider: getEnv("HP_CHANNEL_PROVIDER", ""),
		ImageProvider:   getEnv("HP_IMAGE_PROVIDER", "gemini:imagen-4.0-generate-001"),
		VideoProvider:   getEnv("HP_VIDEO_PROVIDER", "gemini:veo-3.0-generate-001"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),

		MaxAgentTurns:       getEnvInt("HP_MAX_AGENT_TURNS", DefaultMaxAgentTurns),
		TextTimeout:         getEnvDuration("HP_TEXT_TIMEOUT", DefaultTextTimeout),
		VideoSegmentTimeout: getEnvDuration("HP_VIDEO_SEGMENT_TIMEOUT", DefaultVideoSegmentTimeout),
		RenderPollInterval:  getEnvDuration("HP_RENDER_POLL_INTERVAL", DefaultRenderPollInterval),
		RenderWorkers:       getEnvInt("HP_RENDER_WORKERS", DefaultRenderWorkers),
		MaxRenderSeconds:    getEnvFloat("HP_MAX_RENDER_SECONDS", DefaultMaxRenderSeconds),
	}
	if cfg.MaxAgentTurns < 1 {
		return nil, fmt.Errorf("HP_MAX_AGENT_TURNS must be at least 1")
	}
	return cfg, nil
}

// ProviderForTask resolves the "vendor:model" selector for a task type.
func (c *Config) ProviderForTask(taskType string) string {
	selector := ""
	switch taskType {
	case models.TaskAssetMaster, models.TaskAssetChannel, models.TaskAssetAdapt:
		selector = c.AssetProvider
	case models.TaskChannels:
		selector = c.ChannelProvider
	case models.TaskImageGeneration:
		selector = c.ImageProvider
	case models.TaskVideoGeneration, models.TaskVideoRender:
		selector = c.VideoProvider
	}
	if selector == "" {
		selector = c.ChatProvider
	}
	return selector
}

func parseTokenMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		token, userID, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && token != "" && userID != "" {
			out[token] = userID
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
