package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// AnalyzePath is where the background service accepts messages.
const AnalyzePath = "/analyze"

// HTTPChannel sends messages to a background service over HTTP.
type HTTPChannel struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Channel = (*HTTPChannel)(nil)

// NewHTTPChannel targets baseURL; a nil client uses http.DefaultClient.
func NewHTTPChannel(baseURL, apiKey string, client *http.Client) *HTTPChannel {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChannel{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// Call posts req and decodes the reply. Error replies from the service are
// returned as a Response with Error set, not as a Go error.
func (c *HTTPChannel) Call(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+AnalyzePath, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read reply: %w", err)
	}

	var out Response
	if err := json.Unmarshal(payload, &out); err != nil {
		return Response{}, fmt.Errorf("decode reply (status %d): %w", resp.StatusCode, err)
	}
	if out.ID != "" && out.ID != req.ID {
		return Response{}, fmt.Errorf("reply id %s does not match message %s", out.ID, req.ID)
	}
	out.ID = req.ID
	return out, nil
}
