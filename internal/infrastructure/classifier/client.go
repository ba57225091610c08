package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/ports"
)

const maxErrorBody = 4 << 10

// Client talks to the remote sentiment classification endpoint.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *slog.Logger
}

var _ ports.Classifier = (*Client)(nil)

// Options tune the HTTP client. A zero Timeout disables the client deadline.
type Options struct {
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a reusable classifier client.
func NewClient(endpoint string, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   opts.APIKey,
		http:     httpClient,
		logger:   opts.Logger,
	}
}

// Raw posts the text once and returns the undecoded classifier response.
func (c *Client) Raw(ctx context.Context, text string) (json.RawMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrNoText
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(detail))}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	if !json.Valid(payload) {
		return nil, &domain.TransportError{Err: errors.New("response is not valid JSON")}
	}

	return json.RawMessage(payload), nil
}

// Classify calls Raw and flattens the response into a score list.
func (c *Client) Classify(ctx context.Context, text string) (domain.ScoreList, error) {
	raw, err := c.Raw(ctx, text)
	if err != nil {
		return nil, err
	}

	scores, warnings := Normalize(raw)
	for _, warning := range warnings {
		c.warn("classifier response shape", "detail", warning)
	}
	return scores, nil
}

func (c *Client) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
