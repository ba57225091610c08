package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"FeedSentiment/internal/page"
	"FeedSentiment/internal/ports"
)

// DefaultSettleDelay is how long mutations must be quiet before a rescan.
const DefaultSettleDelay = 500 * time.Millisecond

// Reason says what produced a rescan signal.
type Reason string

const (
	ReasonMutation Reason = "mutation"
	ReasonPeriodic Reason = "periodic"
)

// Watcher turns document mutations and a periodic schedule into coalesced
// rescan signals.
type Watcher struct {
	settle   time.Duration
	periodic ports.Scheduler
	logger   *slog.Logger

	signals chan Reason

	mu      sync.Mutex
	timer   *time.Timer
	unsubs  []func()
	started bool
	stopped bool
}

// Options configure a Watcher. A nil Periodic disables the periodic trigger.
type Options struct {
	SettleDelay time.Duration
	Periodic    ports.Scheduler
	Logger      *slog.Logger
}

// New builds an idle watcher.
func New(opts Options) *Watcher {
	settle := opts.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	return &Watcher{
		settle:   settle,
		periodic: opts.Periodic,
		logger:   opts.Logger,
		signals:  make(chan Reason, 1),
	}
}

// C delivers rescan signals. Signals raised while one is pending are merged.
func (w *Watcher) C() <-chan Reason {
	return w.signals
}

// Watch subscribes to mutations of doc. It may be called for several documents.
func (w *Watcher) Watch(doc *page.Document) {
	cancel := doc.Observe(w.onMutation)
	w.mu.Lock()
	w.unsubs = append(w.unsubs, cancel)
	w.mu.Unlock()
}

// Start begins the periodic trigger.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.periodic == nil {
		return nil
	}
	if err := w.periodic.Start(ctx, func(time.Time) { w.emit(ReasonPeriodic) }); err != nil {
		return fmt.Errorf("start periodic rescan: %w", err)
	}
	return nil
}

// Stop unsubscribes from documents and halts both triggers.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	unsubs := w.unsubs
	w.unsubs = nil
	w.mu.Unlock()

	for _, cancel := range unsubs {
		cancel()
	}
	if w.periodic == nil {
		return nil
	}
	return w.periodic.Stop(ctx)
}

// Trigger raises a signal immediately, used for the initial scan.
func (w *Watcher) Trigger(reason Reason) {
	w.emit(reason)
}

func (w *Watcher) onMutation(added []*html.Node) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	w.debug("document mutated", "added", len(added))
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, func() { w.emit(ReasonMutation) })
}

func (w *Watcher) emit(reason Reason) {
	select {
	case w.signals <- reason:
	default:
	}
}

func (w *Watcher) debug(msg string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
