package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"FeedSentiment/internal/page"
	"FeedSentiment/internal/ports"
)

const userAgent = "FeedSentiment/1.0"

// PageSource loads feed pages from http(s) URLs or local files.
type PageSource struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.PageSource = (*PageSource)(nil)

// NewPageSource wires an HTTP client; nil uses a 20 second timeout.
func NewPageSource(client *http.Client, log *slog.Logger) *PageSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageSource{client: client, logger: log}
}

// Fetch opens location. The caller closes the returned body.
func (s *PageSource) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		s.debug("open page file", "path", location)
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	s.debug("fetch page", "url", location)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	return resp.Body, nil
}

// LoadDocument fetches and parses a page in one step.
func LoadDocument(ctx context.Context, src ports.PageSource, location string) (*page.Document, error) {
	body, err := src.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := page.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", location, err)
	}
	return doc, nil
}

func (s *PageSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
