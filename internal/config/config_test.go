package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	if cfg.Background.CacheTTL != 120*time.Second {
		t.Fatalf("unexpected cache TTL %s", cfg.Background.CacheTTL)
	}
	if cfg.Classifier.Timeout != 0 {
		t.Fatalf("classifier timeout must default to none, got %s", cfg.Classifier.Timeout)
	}
	if cfg.Page.SettleDelay != 500*time.Millisecond || cfg.Page.RescanInterval != 3*time.Second {
		t.Fatalf("unexpected page timings %+v", cfg.Page)
	}
	if cfg.Page.TextKeyLength != 50 || cfg.Page.Platform != "x" {
		t.Fatalf("unexpected page defaults %+v", cfg.Page)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
logging:
  level: debug
classifier:
  endpoint: http://file.example/classify
  timeout: 10s
  ratePerSecond: 2.5
background:
  cacheTTL: 1m
  allowedOrigins: ["chrome-extension://abc"]
page:
  platform: custom
  settleDelay: 250ms
  selectors:
    posts: ["div.post"]
    texts: ["p.body"]
    permalinkPattern: '/p/(\d+)'
history:
  path: /tmp/history.db
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(classifierEndpointEnv, "http://env.example/classify")
	t.Setenv(apiAccessKeyEnv, "secret")

	cfg := Load(path)

	if cfg.Classifier.Endpoint != "http://env.example/classify" {
		t.Fatalf("env override lost, got %s", cfg.Classifier.Endpoint)
	}
	if cfg.Classifier.Timeout != 10*time.Second || cfg.Classifier.RatePerSecond != 2.5 {
		t.Fatalf("unexpected classifier %+v", cfg.Classifier)
	}
	if cfg.Background.CacheTTL != time.Minute || cfg.Background.APIKey != "secret" {
		t.Fatalf("unexpected background %+v", cfg.Background)
	}
	if cfg.Background.CacheMaxEntries != 500 {
		t.Fatalf("default cap should survive merge, got %d", cfg.Background.CacheMaxEntries)
	}
	if cfg.Page.Platform != "custom" || cfg.Page.SettleDelay != 250*time.Millisecond {
		t.Fatalf("unexpected page %+v", cfg.Page)
	}
	if cfg.Page.Selectors.PermalinkPattern != `/p/(\d+)` || cfg.Page.Selectors.Posts[0] != "div.post" {
		t.Fatalf("unexpected selectors %+v", cfg.Page.Selectors)
	}
	if cfg.History.Path != "/tmp/history.db" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected history/logging %+v %+v", cfg.History, cfg.Logging)
	}
}

func TestLoadFallsBackOnBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("classifier: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)
	if cfg.Classifier.Endpoint != defaultClassifierEndpoint {
		t.Fatalf("expected defaults on parse error, got %s", cfg.Classifier.Endpoint)
	}
}

func TestSanitizeClampsIntervals(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Page.RescanInterval = 100 * time.Millisecond
	cfg.Classifier.Timeout = -time.Second
	cfg.Background.CacheTTL = 0
	cfg.sanitize()

	if cfg.Page.RescanInterval != 3*time.Second {
		t.Fatalf("rescan interval not clamped: %s", cfg.Page.RescanInterval)
	}
	if cfg.Classifier.Timeout != 0 {
		t.Fatalf("negative timeout not disabled")
	}
	if cfg.Background.CacheTTL != 120*time.Second {
		t.Fatalf("cache TTL not restored")
	}
}
