package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv         = "FEED_SENTIMENT_CONFIG"
	classifierEndpointEnv = "CLASSIFIER_ENDPOINT"
	classifierAPIKeyEnv   = "CLASSIFIER_API_KEY"
	backgroundURLEnv      = "BACKGROUND_URL"
	apiAccessKeyEnv       = "API_ACCESS_KEY"
	logLevelEnv           = "LOG_LEVEL"

	defaultClassifierEndpoint = "https://api-inference.huggingface.co/models/cardiffnlp/twitter-roberta-base-sentiment-latest"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Background BackgroundConfig `yaml:"background"`
	Page       PageConfig       `yaml:"page"`
	History    HistoryConfig    `yaml:"history"`
	Watch      WatchConfig      `yaml:"watch"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ClassifierConfig describes the remote sentiment endpoint. A zero Timeout
// means no client deadline; a zero RatePerSecond means no rate limit.
type ClassifierConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"apiKey"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
}

// BackgroundConfig drives the long-running background service.
type BackgroundConfig struct {
	Listen          string        `yaml:"listen"`
	URL             string        `yaml:"url"`
	APIKey          string        `yaml:"apiKey"`
	CacheTTL        time.Duration `yaml:"cacheTTL"`
	CacheMaxEntries int           `yaml:"cacheMaxEntries"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// PageConfig tunes the page session.
type PageConfig struct {
	Platform       string         `yaml:"platform"`
	TextKeyLength  int            `yaml:"textKeyLength"`
	SettleDelay    time.Duration  `yaml:"settleDelay"`
	RescanInterval time.Duration  `yaml:"rescanInterval"`
	Selectors      SelectorConfig `yaml:"selectors"`
}

// SelectorConfig defines the "custom" platform.
type SelectorConfig struct {
	Posts            []string `yaml:"posts"`
	Texts            []string `yaml:"texts"`
	PermalinkPattern string   `yaml:"permalinkPattern"`
	IDAttributes     []string `yaml:"idAttributes"`
}

// HistoryConfig enables the sqlite audit trail when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig drives watch mode.
type WatchConfig struct {
	URL          string        `yaml:"url"`
	Container    string        `yaml:"container"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Output       string        `yaml:"output"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. An empty path falls back to FEED_SENTIMENT_CONFIG.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.sanitize()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(classifierEndpointEnv); v != "" {
		c.Classifier.Endpoint = v
	}

	if v := os.Getenv(classifierAPIKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}

	if v := os.Getenv(backgroundURLEnv); v != "" {
		c.Background.URL = v
	}

	if v := os.Getenv(apiAccessKeyEnv); v != "" {
		c.Background.APIKey = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) sanitize() {
	defaults := defaultConfig()

	if c.Classifier.Timeout < 0 {
		log.Printf("config: negative classifier timeout %s, disabling it", c.Classifier.Timeout)
		c.Classifier.Timeout = 0
	}
	if c.Classifier.RatePerSecond < 0 {
		c.Classifier.RatePerSecond = 0
	}
	if c.Classifier.Burst <= 0 {
		c.Classifier.Burst = defaults.Classifier.Burst
	}
	if c.Background.CacheTTL <= 0 {
		log.Printf("config: background cache TTL must be positive, reverting to %s", defaults.Background.CacheTTL)
		c.Background.CacheTTL = defaults.Background.CacheTTL
	}
	if c.Page.TextKeyLength <= 0 {
		c.Page.TextKeyLength = defaults.Page.TextKeyLength
	}
	if c.Page.SettleDelay <= 0 {
		c.Page.SettleDelay = defaults.Page.SettleDelay
	}
	if c.Page.RescanInterval < time.Second {
		log.Printf("config: rescan interval %s is below one second, reverting to %s", c.Page.RescanInterval, defaults.Page.RescanInterval)
		c.Page.RescanInterval = defaults.Page.RescanInterval
	}
	if c.Watch.PollInterval < time.Second {
		c.Watch.PollInterval = defaults.Watch.PollInterval
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Classifier.Endpoint != "" {
		base.Classifier.Endpoint = override.Classifier.Endpoint
	}
	if override.Classifier.APIKey != "" {
		base.Classifier.APIKey = override.Classifier.APIKey
	}
	if override.Classifier.Timeout != 0 {
		base.Classifier.Timeout = override.Classifier.Timeout
	}
	if override.Classifier.RatePerSecond != 0 {
		base.Classifier.RatePerSecond = override.Classifier.RatePerSecond
	}
	if override.Classifier.Burst != 0 {
		base.Classifier.Burst = override.Classifier.Burst
	}

	if override.Background.Listen != "" {
		base.Background.Listen = override.Background.Listen
	}
	if override.Background.URL != "" {
		base.Background.URL = override.Background.URL
	}
	if override.Background.APIKey != "" {
		base.Background.APIKey = override.Background.APIKey
	}
	if override.Background.CacheTTL != 0 {
		base.Background.CacheTTL = override.Background.CacheTTL
	}
	if override.Background.CacheMaxEntries != 0 {
		base.Background.CacheMaxEntries = override.Background.CacheMaxEntries
	}
	if len(override.Background.AllowedOrigins) > 0 {
		base.Background.AllowedOrigins = override.Background.AllowedOrigins
	}

	if override.Page.Platform != "" {
		base.Page.Platform = override.Page.Platform
	}
	if override.Page.TextKeyLength != 0 {
		base.Page.TextKeyLength = override.Page.TextKeyLength
	}
	if override.Page.SettleDelay != 0 {
		base.Page.SettleDelay = override.Page.SettleDelay
	}
	if override.Page.RescanInterval != 0 {
		base.Page.RescanInterval = override.Page.RescanInterval
	}
	if len(override.Page.Selectors.Posts) > 0 {
		base.Page.Selectors = override.Page.Selectors
	}

	if override.History.Path != "" {
		base.History = override.History
	}

	if override.Watch.URL != "" {
		base.Watch.URL = override.Watch.URL
	}
	if override.Watch.Container != "" {
		base.Watch.Container = override.Watch.Container
	}
	if override.Watch.PollInterval != 0 {
		base.Watch.PollInterval = override.Watch.PollInterval
	}
	if override.Watch.Output != "" {
		base.Watch.Output = override.Watch.Output
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Classifier: ClassifierConfig{
			Endpoint: defaultClassifierEndpoint,
			Burst:    1,
		},
		Background: BackgroundConfig{
			Listen:          ":8787",
			URL:             "",
			CacheTTL:        120 * time.Second,
			CacheMaxEntries: 500,
		},
		Page: PageConfig{
			Platform:       "x",
			TextKeyLength:  50,
			SettleDelay:    500 * time.Millisecond,
			RescanInterval: 3 * time.Second,
		},
		Watch: WatchConfig{
			Container:    "main",
			PollInterval: 30 * time.Second,
		},
	}
}
