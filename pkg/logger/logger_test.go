package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewForwardsToSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	New("http", base).Printf("tls handshake error from %s", "10.0.0.1")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "tls handshake error from 10.0.0.1") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected error level, got %q", out)
	}
}

func TestNewWithoutBase(t *testing.T) {
	t.Parallel()

	if l := New("cron", nil); l.Prefix() != "[cron] " {
		t.Fatalf("unexpected prefix %q", l.Prefix())
	}
}

func TestNewAtUsesLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	NewAt("http", base, slog.LevelInfo).Print("GET /stats 200")

	out := buf.String()
	if !strings.Contains(out, "level=INFO") || strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected info level, got %q", out)
	}
}
