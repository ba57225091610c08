package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"FeedSentiment/internal/domain"
)

// Classifier sends post text to the remote sentiment model.
type Classifier interface {
	Raw(ctx context.Context, text string) (json.RawMessage, error)
	Classify(ctx context.Context, text string) (domain.ScoreList, error)
}

// HistoryRepository stores an audit trail of classifier calls.
type HistoryRepository interface {
	Record(ctx context.Context, record domain.ClassificationRecord) error
	Totals(ctx context.Context) (map[domain.Outcome]int, error)
	Recent(ctx context.Context, limit int) ([]domain.ClassificationRecord, error)
}

// PageSource fetches the HTML of a feed page.
type PageSource interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// Scheduler controls when periodic jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
