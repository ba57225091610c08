package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"FeedSentiment/internal/cache"
	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/infrastructure/classifier"
	"FeedSentiment/internal/messaging"
	"FeedSentiment/internal/ports"
)

// AnalyzerDeps wires the background context collaborators.
type AnalyzerDeps struct {
	Classifier ports.Classifier
	History    ports.HistoryRepository
	Cache      *cache.Cache[json.RawMessage]
	Limiter    *rate.Limiter
	Logger     *slog.Logger
	Now        func() time.Time
}

// AnalyzerStats is a snapshot of background counters.
type AnalyzerStats struct {
	Requests        int64 `json:"requests"`
	Rejected        int64 `json:"rejected"`
	CacheHits       int64 `json:"cacheHits"`
	ClassifierCalls int64 `json:"classifierCalls"`
	Failures        int64 `json:"failures"`
	InFlight        int64 `json:"inFlight"`
	CacheEntries    int   `json:"cacheEntries"`
}

// Analyzer answers analyze messages in the background context: it rejects
// empty text, serves repeated requests from the TTL cache and otherwise
// calls the classifier once.
type Analyzer struct {
	classifier ports.Classifier
	history    ports.HistoryRepository
	cache      *cache.Cache[json.RawMessage]
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time

	requests atomic.Int64
	rejected atomic.Int64
	hits     atomic.Int64
	calls    atomic.Int64
	failures atomic.Int64
	inFlight atomic.Int64
}

var _ messaging.Handler = (*Analyzer)(nil)

// NewAnalyzer constructs the background handler.
func NewAnalyzer(deps AnalyzerDeps) *Analyzer {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	c := deps.Cache
	if c == nil {
		c = cache.New[json.RawMessage](120*time.Second, 500)
	}
	return &Analyzer{
		classifier: deps.Classifier,
		history:    deps.History,
		cache:      c,
		limiter:    deps.Limiter,
		logger:     deps.Logger,
		now:        now,
	}
}

// Handle serves one message.
func (a *Analyzer) Handle(ctx context.Context, req messaging.Request) messaging.Response {
	a.requests.Add(1)

	if req.Type != messaging.TypeAnalyze {
		a.rejected.Add(1)
		return messaging.Response{Error: messaging.ErrMsgUnsupported}
	}
	if strings.TrimSpace(req.Text) == "" {
		a.rejected.Add(1)
		return messaging.Response{Error: messaging.ErrMsgNoText}
	}

	key := cacheKey(req)
	if raw, ok := a.cache.Get(key); ok {
		a.hits.Add(1)
		a.debug("cache hit", "key", key)
		return messaging.Response{Result: cloneRaw(raw), Cached: true}
	}

	if a.classifier == nil {
		return messaging.Response{Error: "classifier is not configured"}
	}

	a.inFlight.Add(1)
	defer a.inFlight.Add(-1)

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			a.failures.Add(1)
			return messaging.Response{Error: fmt.Sprintf("rate limit: %v", err)}
		}
	}

	a.calls.Add(1)
	raw, err := a.classifier.Raw(ctx, req.Text)
	if err != nil {
		a.failures.Add(1)
		a.warn("classification failed", "key", key, "err", err)
		a.record(ctx, domain.ClassificationRecord{
			Key:     key,
			Outcome: domain.OutcomeOf(err),
			Error:   err.Error(),
		})
		return messaging.Response{Error: err.Error()}
	}

	scores, warnings := classifier.Normalize(raw)
	for _, warning := range warnings {
		a.warn("classifier response shape", "key", key, "detail", warning)
	}

	record := domain.ClassificationRecord{Key: key, Outcome: domain.OutcomeEmpty, Scores: scores}
	if best, ok := scores.Best(); ok {
		record.Outcome = domain.OutcomeOK
		record.Label = scores[best].Label
		a.cache.Put(key, cloneRaw(raw))
	}
	a.record(ctx, record)

	return messaging.Response{Result: raw}
}

// Stats returns the current counters.
func (a *Analyzer) Stats() AnalyzerStats {
	return AnalyzerStats{
		Requests:        a.requests.Load(),
		Rejected:        a.rejected.Load(),
		CacheHits:       a.hits.Load(),
		ClassifierCalls: a.calls.Load(),
		Failures:        a.failures.Load(),
		InFlight:        a.inFlight.Load(),
		CacheEntries:    a.cache.Len(),
	}
}

// History exposes the audit store, nil when disabled.
func (a *Analyzer) History() ports.HistoryRepository {
	return a.history
}

// Close drops every cached result.
func (a *Analyzer) Close() {
	a.cache.Clear()
}

func cacheKey(req messaging.Request) string {
	if req.PostID != "" {
		return req.PostID
	}
	return "text:" + req.Text
}

func (a *Analyzer) record(ctx context.Context, record domain.ClassificationRecord) {
	if a.history == nil {
		return
	}
	record.CreatedAt = a.now().UTC()
	if err := a.history.Record(ctx, record); err != nil {
		a.warn("record classification history", "key", record.Key, "err", err)
	}
}

func (a *Analyzer) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *Analyzer) warn(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}

// cloneRaw copies a classifier reply so cached bytes are never shared with
// a caller.
func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
