package messaging

import (
	"context"
	"encoding/json"
)

// TypeAnalyze is the only message type the background context understands.
const TypeAnalyze = "analyze"

// Error strings returned to the page context.
const (
	ErrMsgNoText      = "No text provided"
	ErrMsgUnsupported = "Unsupported message type"
)

// Request is a message from the page context to the background context.
type Request struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	PostID string `json:"postId,omitempty"`
}

// Response answers exactly one Request. Either Result or Error is set.
type Response struct {
	ID     string          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Cached bool            `json:"cached,omitempty"`
}

// Failed reports whether the response carries an error.
func (r Response) Failed() bool {
	return r.Error != ""
}

// Handler serves requests in the background context.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Channel carries requests from the page context and returns the matching
// response. Implementations must never hand a caller another request's reply.
type Channel interface {
	Call(ctx context.Context, req Request) (Response, error)
}
