package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/infrastructure/classifier"
	"FeedSentiment/internal/messaging"
)

// fakeClassifier answers Raw from a function and counts calls per text.
type fakeClassifier struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(text string) (json.RawMessage, error)
}

func newFakeClassifier(respond func(text string) (json.RawMessage, error)) *fakeClassifier {
	return &fakeClassifier{calls: map[string]int{}, respond: respond}
}

func (f *fakeClassifier) Raw(_ context.Context, text string) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[text]++
	f.mu.Unlock()
	return f.respond(text)
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (domain.ScoreList, error) {
	raw, err := f.Raw(ctx, text)
	if err != nil {
		return nil, err
	}
	scores, _ := classifier.Normalize(raw)
	return scores, nil
}

func (f *fakeClassifier) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeClassifier) CallsFor(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

// gatedChannel holds every call until release is closed.
type gatedChannel struct {
	next    messaging.Channel
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (g *gatedChannel) Call(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return messaging.Response{}, ctx.Err()
	}
	return g.next.Call(ctx, req)
}

func (g *gatedChannel) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.ClassificationRecord
}

func (f *fakeHistory) Record(_ context.Context, record domain.ClassificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeHistory) Totals(context.Context) (map[domain.Outcome]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	totals := map[domain.Outcome]int{}
	for _, r := range f.records {
		totals[r.Outcome]++
	}
	return totals, nil
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]domain.ClassificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ClassificationRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.records[i])
	}
	return out, nil
}

func (f *fakeHistory) Records() []domain.ClassificationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ClassificationRecord(nil), f.records...)
}

const positiveRaw = `[[{"label":"positive","score":0.95},{"label":"neutral","score":0.03},{"label":"negative","score":0.02}]]`
