package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"FeedSentiment/internal/config"
)

const savedTimeline = `<html><head></head><body><main>
<article data-testid="tweet" role="article">
  <a href="/alice/status/101"><time>1h</time></a>
  <div data-testid="tweetText" lang="en">I love this</div>
</article>
<article data-testid="tweet" role="article">
  <a href="/bob/status/102"><time>2h</time></a>
  <div data-testid="tweetText" lang="en">This is terrible</div>
</article>
</main></body></html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnnotateWritesAnnotatedPage(t *testing.T) {
	t.Parallel()

	var calls int32
	classifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "terrible") {
			_, _ = w.Write([]byte(`[[{"label":"negative","score":0.9},{"label":"neutral","score":0.08},{"label":"positive","score":0.02}]]`))
			return
		}
		_, _ = w.Write([]byte(`[[{"label":"positive","score":0.95},{"label":"neutral","score":0.03},{"label":"negative","score":0.02}]]`))
	}))
	defer classifier.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "timeline.html")
	output := filepath.Join(dir, "annotated.html")
	if err := os.WriteFile(input, []byte(savedTimeline), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := config.Load(filepath.Join(dir, "none.yaml"))
	cfg.Classifier.Endpoint = classifier.URL
	cfg.Background.URL = ""
	cfg.History.Path = filepath.Join(dir, "history.db")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := New(cfg, quietLogger()).Annotate(ctx, input, output); err != nil {
		t.Fatalf("annotate: %v", err)
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	out := string(raw)
	for _, want := range []string{
		`id="feed-sentiment-style"`,
		`sentiment-positive`,
		`sentiment-negative`,
		"POSITIVE 95%\nNEUTRAL 3% • NEGATIVE 2%",
		"NEGATIVE 90%\nNEUTRAL 8% • POSITIVE 2%",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 classifier calls, got %d", calls)
	}
}

func TestAnnotateUnknownPlatform(t *testing.T) {
	t.Parallel()

	cfg := config.Load(filepath.Join(t.TempDir(), "none.yaml"))
	cfg.Page.Platform = "mastodon"

	err := New(cfg, quietLogger()).Annotate(context.Background(), "unused.html", "-")
	if err == nil || !strings.Contains(err.Error(), "mastodon") {
		t.Fatalf("expected unknown platform error, got %v", err)
	}
}
