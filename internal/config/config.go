// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":8080"
	DefaultLLMProvider        = "openai"
	DefaultLLMModel           = "gpt-4o"
	DefaultLLMTemperature     = 0.3
	DefaultLLMMaxTokens       = 400
	DefaultLLMTimeoutSeconds  = 15
	DefaultCacheScope         = "text"
	DefaultIdleTimeoutSeconds = 3600
	DefaultSweepSpec          = "@every 1m"
	DefaultHistoryTurns       = 6
	DefaultCurrencySymbol     = "$"
	DefaultPolicyURL          = "https://congelados-demo.com/politica-datos"
	DefaultPromoProbability   = 0.3
	DefaultWhatsAppAPIBaseURL = "https://graph.facebook.com/v20.0"
)

// Cache scopes accepted by LLMConfig.CacheScope.
const (
	CacheScopeText        = "text"
	CacheScopeTextAndCart = "text_and_cart"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	LLM      LLMConfig      `toml:"llm"`
	Session  SessionConfig  `toml:"session"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Reply    ReplyConfig    `toml:"reply"`
	Telegram TelegramConfig `toml:"telegram"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LLMConfig selects the completion backend and its sampling parameters.
type LLMConfig struct {
	Provider       string  `toml:"provider"`
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RatePerSecond  float64 `toml:"rate_per_second"`
	Burst          int     `toml:"burst"`
	CacheScope     string  `toml:"cache_scope"`
}

// Timeout returns the per-call completion timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultLLMTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionConfig holds session expiry and history settings.
type SessionConfig struct {
	IdleTimeoutSeconds int    `toml:"idle_timeout_seconds"`
	SweepSpec          string `toml:"sweep_spec"`
	HistoryTurns       int    `toml:"history_turns"`
}

// IdleTimeout returns how long a session may stay untouched before the sweeper drops it.
func (c SessionConfig) IdleTimeout() time.Duration {
	if c.IdleTimeoutSeconds <= 0 {
		return DefaultIdleTimeoutSeconds * time.Second
	}
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// CatalogConfig holds the optional catalog file and money rendering settings.
type CatalogConfig struct {
	Path           string `toml:"path"`
	CurrencySymbol string `toml:"currency_symbol"`
	PolicyURL      string `toml:"policy_url"`
}

// ReplyConfig tunes randomized reply selection.
type ReplyConfig struct {
	PromoProbability float64 `toml:"promo_probability"`
	Seed             int64   `toml:"seed"`
}

// TelegramConfig enables the Telegram poller when BotToken is set.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
}

// WhatsAppConfig holds Cloud API credentials for the WhatsApp webhook.
type WhatsAppConfig struct {
	VerifyToken   string `toml:"verify_token"`
	AccessToken   string `toml:"access_token"`
	PhoneNumberID string `toml:"phone_number_id"`
	APIBaseURL    string `toml:"api_base_url"`
}

// Enabled reports whether outbound WhatsApp delivery is configured.
func (c WhatsAppConfig) Enabled() bool {
	return strings.TrimSpace(c.AccessToken) != "" && strings.TrimSpace(c.PhoneNumberID) != ""
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		LLM: LLMConfig{
			Provider:       DefaultLLMProvider,
			Model:          DefaultLLMModel,
			Temperature:    DefaultLLMTemperature,
			MaxTokens:      DefaultLLMMaxTokens,
			TimeoutSeconds: DefaultLLMTimeoutSeconds,
			CacheScope:     DefaultCacheScope,
		},
		Session: SessionConfig{
			IdleTimeoutSeconds: DefaultIdleTimeoutSeconds,
			SweepSpec:          DefaultSweepSpec,
			HistoryTurns:       DefaultHistoryTurns,
		},
		Catalog: CatalogConfig{
			CurrencySymbol: DefaultCurrencySymbol,
			PolicyURL:      DefaultPolicyURL,
		},
		Reply: ReplyConfig{
			PromoProbability: DefaultPromoProbability,
		},
		WhatsApp: WhatsAppConfig{
			APIBaseURL: DefaultWhatsAppAPIBaseURL,
		},
	}
}

// Load reads and parses the TOML config file at path, applies default values for missing
// fields and lets environment variables fill in secrets.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "gemini":
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	setIfEmpty(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setIfEmpty(&cfg.WhatsApp.AccessToken, "WHATSAPP_TOKEN")
	setIfEmpty(&cfg.WhatsApp.VerifyToken, "WHATSAPP_VERIFY_TOKEN")
	setIfEmpty(&cfg.WhatsApp.PhoneNumberID, "WHATSAPP_PHONE_NUMBER_ID")
}

func setIfEmpty(dst *string, env string) {
	if strings.TrimSpace(*dst) != "" {
		return
	}
	*dst = strings.TrimSpace(os.Getenv(env))
}
