package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"FeedSentiment/internal/messaging"
	"FeedSentiment/internal/ports"
	"FeedSentiment/internal/usecase"
)

// Background is what the handlers need from the background context.
type Background interface {
	messaging.Handler
	Stats() usecase.AnalyzerStats
	History() ports.HistoryRepository
}

// Handler serves the background HTTP endpoints.
type Handler struct {
	background Background
	logger     *slog.Logger
	startedAt  time.Time
}

// NewHandler wires the background context into gin handlers.
func NewHandler(background Background, log *slog.Logger) *Handler {
	return &Handler{
		background: background,
		logger:     log,
		startedAt:  time.Now().UTC(),
	}
}

// Analyze accepts one message and answers with its response.
func (h *Handler) Analyze(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read message: " + err.Error()})
		return
	}
	req, err := decodeMessage(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message: " + err.Error()})
		return
	}

	resp := h.background.Handle(c.Request.Context(), req)
	resp.ID = req.ID
	c.JSON(statusFor(resp), resp)
}

// Health reports liveness and cache size.
func (h *Handler) Health(c *gin.Context) {
	stats := h.background.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"cacheEntries": stats.CacheEntries,
		"inFlight":     stats.InFlight,
		"startedAt":    h.startedAt.Format(time.RFC3339),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats reports counters and, when enabled, history totals.
func (h *Handler) Stats(c *gin.Context) {
	body := gin.H{"analyzer": h.background.Stats()}

	if history := h.background.History(); history != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		totals, err := history.Totals(ctx)
		if err != nil {
			h.error("history totals", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}
		body["history"] = totals
	}

	c.JSON(http.StatusOK, body)
}

// History lists the newest classification records.
func (h *Handler) History(c *gin.Context) {
	history := h.background.History()
	if history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
		return
	}

	records, err := history.Recent(c.Request.Context(), limit)
	if err != nil {
		h.error("history recent", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// decodeMessage reads a message posted to /analyze, where an absent type
// means analyze. An empty body and a text that is not a string both decode
// to a request without text, which the analyzer answers with ErrMsgNoText.
func decodeMessage(body []byte) (messaging.Request, error) {
	req := messaging.Request{Type: messaging.TypeAnalyze}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}

	var wire struct {
		ID     string      `json:"id"`
		Type   string      `json:"type"`
		Text   interface{} `json:"text"`
		PostID interface{} `json:"postId"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return req, err
	}

	req.ID = wire.ID
	if wire.Type != "" {
		req.Type = wire.Type
	}
	if text, ok := wire.Text.(string); ok {
		req.Text = text
	}
	switch id := wire.PostID.(type) {
	case string:
		req.PostID = id
	case float64:
		req.PostID = strconv.FormatFloat(id, 'f', -1, 64)
	}
	return req, nil
}

func statusFor(resp messaging.Response) int {
	switch resp.Error {
	case "":
		return http.StatusOK
	case messaging.ErrMsgNoText, messaging.ErrMsgUnsupported:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) error(msg string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Error(msg, args...)
	}
}
