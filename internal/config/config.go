// Package config handles loading and persisting user configuration for
// morph. Settings come from ~/.morph/config.json, optional .env files and
// the environment, in increasing order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/arin/morph/internal/chat"
)

const (
	dirName  = ".morph"
	fileName = "config.json"

	defaultLogLevel   = "warn"
	defaultListenAddr = ":8080"

	// TavilyKeyName is the key name used for the search provider.
	TavilyKeyName = "tavily"
)

// Config holds the user's configuration.
type Config struct {
	// APIKeys maps a provider id (or "tavily") to its API key.
	APIKeys map[string]string `json:"api_keys,omitempty"`
	// BaseURLs overrides provider endpoints, keyed by provider id.
	BaseURLs   map[string]string `json:"base_urls,omitempty"`
	Model      string            `json:"model,omitempty"`
	Search     bool              `json:"search"`
	LogLevel   string            `json:"log_level,omitempty"`
	LogPretty  bool              `json:"log_pretty,omitempty"`
	RedisURL   string            `json:"redis_url,omitempty"`
	ModelsFile string            `json:"models_file,omitempty"`
	ListenAddr string            `json:"listen_addr,omitempty"`

	// SearchCacheTTL is only read from the environment.
	SearchCacheTTL time.Duration `json:"-"`
}

// env lists the environment overrides. Empty strings and nil pointers mean
// "not set" so file values survive.
type env struct {
	OpenAIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicKey string `envconfig:"ANTHROPIC_API_KEY"`
	GoogleKey    string `envconfig:"GOOGLE_API_KEY"`
	GroqKey      string `envconfig:"GROQ_API_KEY"`
	DeepSeekKey  string `envconfig:"DEEPSEEK_API_KEY"`
	XAIKey       string `envconfig:"XAI_API_KEY"`
	TavilyKey    string `envconfig:"TAVILY_API_KEY"`

	OpenAIBaseURL    string `envconfig:"MORPH_OPENAI_BASE_URL"`
	AnthropicBaseURL string `envconfig:"MORPH_ANTHROPIC_BASE_URL"`
	GoogleBaseURL    string `envconfig:"MORPH_GOOGLE_BASE_URL"`
	GroqBaseURL      string `envconfig:"MORPH_GROQ_BASE_URL"`
	DeepSeekBaseURL  string `envconfig:"MORPH_DEEPSEEK_BASE_URL"`
	XAIBaseURL       string `envconfig:"MORPH_XAI_BASE_URL"`

	Model          string        `envconfig:"MORPH_MODEL"`
	Search         *bool         `envconfig:"MORPH_SEARCH"`
	LogLevel       string        `envconfig:"MORPH_LOG_LEVEL"`
	LogPretty      *bool         `envconfig:"MORPH_LOG_PRETTY"`
	RedisURL       string        `envconfig:"MORPH_REDIS_URL"`
	SearchCacheTTL time.Duration `envconfig:"MORPH_SEARCH_CACHE_TTL" default:"1h"`
	ModelsFile     string        `envconfig:"MORPH_MODELS_FILE"`
	ListenAddr     string        `envconfig:"MORPH_LISTEN_ADDR"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

func defaults() *Config {
	return &Config{
		Search:     true,
		LogLevel:   defaultLogLevel,
		ListenAddr: defaultListenAddr,
	}
}

// readFile layers the config file over the defaults. A missing file is fine.
func readFile() (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath(), err)
	}
	return cfg, nil
}

// Load reads the configuration from disk, .env files and the environment.
// A .env in the working directory and one in Dir() are loaded without
// overriding variables that are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(Dir(), ".env"))

	cfg, err := readFile()
	if err != nil {
		return nil, err
	}

	var e env
	if err := envconfig.Process("", &e); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.applyEnv(&e)
	return cfg, nil
}

func (c *Config) applyEnv(e *env) {
	keys := map[string]string{
		string(chat.ProviderOpenAI):    e.OpenAIKey,
		string(chat.ProviderAnthropic): e.AnthropicKey,
		string(chat.ProviderGoogle):    e.GoogleKey,
		string(chat.ProviderGroq):      e.GroqKey,
		string(chat.ProviderDeepSeek):  e.DeepSeekKey,
		string(chat.ProviderXAI):       e.XAIKey,
		TavilyKeyName:                  e.TavilyKey,
	}
	for name, v := range keys {
		if v != "" {
			if c.APIKeys == nil {
				c.APIKeys = map[string]string{}
			}
			c.APIKeys[name] = v
		}
	}
	urls := map[string]string{
		string(chat.ProviderOpenAI):    e.OpenAIBaseURL,
		string(chat.ProviderAnthropic): e.AnthropicBaseURL,
		string(chat.ProviderGoogle):    e.GoogleBaseURL,
		string(chat.ProviderGroq):      e.GroqBaseURL,
		string(chat.ProviderDeepSeek):  e.DeepSeekBaseURL,
		string(chat.ProviderXAI):       e.XAIBaseURL,
	}
	for name, v := range urls {
		if v != "" {
			if c.BaseURLs == nil {
				c.BaseURLs = map[string]string{}
			}
			c.BaseURLs[name] = v
		}
	}

	if e.Model != "" {
		c.Model = e.Model
	}
	if e.Search != nil {
		c.Search = *e.Search
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
	if e.LogPretty != nil {
		c.LogPretty = *e.LogPretty
	}
	if e.RedisURL != "" {
		c.RedisURL = e.RedisURL
	}
	if e.ModelsFile != "" {
		c.ModelsFile = e.ModelsFile
	}
	if e.ListenAddr != "" {
		c.ListenAddr = e.ListenAddr
	}
	c.SearchCacheTTL = e.SearchCacheTTL
}

// Credentials returns the configured keys as a read-only value.
func (c *Config) Credentials() chat.Credentials {
	return chat.Credentials{
		OpenAI:    c.APIKeys[string(chat.ProviderOpenAI)],
		Anthropic: c.APIKeys[string(chat.ProviderAnthropic)],
		Google:    c.APIKeys[string(chat.ProviderGoogle)],
		Groq:      c.APIKeys[string(chat.ProviderGroq)],
		DeepSeek:  c.APIKeys[string(chat.ProviderDeepSeek)],
		XAI:       c.APIKeys[string(chat.ProviderXAI)],
		Tavily:    c.APIKeys[TavilyKeyName],
	}
}

// DispatcherOptions turns the endpoint overrides into dispatcher options.
func (c *Config) DispatcherOptions() []chat.DispatcherOption {
	var opts []chat.DispatcherOption
	for name, url := range c.BaseURLs {
		if p := chat.ProviderID(name); p.Valid() && url != "" {
			opts = append(opts, chat.WithBaseURL(p, url))
		}
	}
	return opts
}

// Redacted returns display lines with every key masked.
func (c *Config) Redacted() []string {
	lines := []string{
		"config file: " + configPath(),
		"model: " + valueOr(c.Model, "(default)"),
		fmt.Sprintf("search: %v", c.Search),
		"log level: " + c.LogLevel,
		"redis: " + valueOr(c.RedisURL, "(none)"),
		"models file: " + valueOr(c.ModelsFile, "(built-in)"),
		"listen: " + c.ListenAddr,
	}
	names := make([]string, 0, len(c.APIKeys))
	for name := range c.APIKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s key: %s", name, Mask(c.APIKeys[name])))
	}
	return lines
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", 8) + secret[len(secret)-4:]
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0o600)
}

// SetAPIKey saves the API key of a provider, or of "tavily", to the config
// file.
func SetAPIKey(provider, key string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != TavilyKeyName && !chat.ProviderID(provider).Valid() {
		return fmt.Errorf("unknown provider %q", provider)
	}
	cfg, err := readFile()
	if err != nil {
		return err
	}
	if cfg.APIKeys == nil {
		cfg.APIKeys = map[string]string{}
	}
	if key == "" {
		delete(cfg.APIKeys, provider)
	} else {
		cfg.APIKeys[provider] = key
	}
	return save(cfg)
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	cfg, err := readFile()
	if err != nil {
		return err
	}
	cfg.Model = model
	return save(cfg)
}

// SetSearch saves whether live search is enabled by default.
func SetSearch(enabled bool) error {
	cfg, err := readFile()
	if err != nil {
		return err
	}
	cfg.Search = enabled
	return save(cfg)
}
