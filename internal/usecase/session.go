package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedSentiment/internal/annotator"
	"FeedSentiment/internal/cache"
	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/infrastructure/classifier"
	"FeedSentiment/internal/messaging"
	"FeedSentiment/internal/page"
	"FeedSentiment/internal/scanner"
	"FeedSentiment/internal/watcher"
)

// ErrSessionClosed is returned by calls made after Run returned.
var ErrSessionClosed = errors.New("page session is closed")

// SessionDeps wires one page context.
type SessionDeps struct {
	Document  *page.Document
	Scanner   *scanner.FeedScanner
	Annotator *annotator.Annotator
	Channel   messaging.Channel
	Watcher   *watcher.Watcher
	Logger    *slog.Logger
	Now       func() time.Time
}

// ScanReport summarises one pass over the document.
type ScanReport struct {
	Discovered int
	Requested  int
	Reapplied  int
	Skipped    int
}

// SessionStats is a snapshot of the page context.
type SessionStats struct {
	Scans       int
	Requests    int
	Completions int
	Failures    int
	InFlight    int
	CacheSize   int
}

type completion struct {
	key  domain.PostIdentity
	resp messaging.Response
	err  error
}

// Session owns a page document. The document, page cache and pending set
// are only touched by the Run goroutine; classification requests run on
// their own goroutines and report back through a channel.
type Session struct {
	doc       *page.Document
	scanner   *scanner.FeedScanner
	annotator *annotator.Annotator
	channel   messaging.Channel
	watcher   *watcher.Watcher
	logger    *slog.Logger
	now       func() time.Time

	cache   *cache.Cache[domain.ClassificationEntry]
	pending map[domain.PostIdentity]struct{}

	completions chan completion
	actions     chan func()
	done        chan struct{}

	runCtx      context.Context
	inFlight    int
	idleWaiters []chan struct{}
	stats       SessionStats
}

// NewSession constructs an idle page session; call Run to start it.
func NewSession(deps SessionDeps) *Session {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	ann := deps.Annotator
	if ann == nil {
		ann = annotator.New(deps.Logger)
	}
	return &Session{
		doc:         deps.Document,
		scanner:     deps.Scanner,
		annotator:   ann,
		channel:     deps.Channel,
		watcher:     deps.Watcher,
		logger:      deps.Logger,
		now:         now,
		cache:       cache.New[domain.ClassificationEntry](0, 0),
		pending:     map[domain.PostIdentity]struct{}{},
		completions: make(chan completion),
		actions:     make(chan func()),
		done:        make(chan struct{}),
	}
}

// Run injects the stylesheet, scans once and then serves rescans,
// completions and queued actions until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if s.doc == nil || s.scanner == nil || s.channel == nil {
		close(s.done)
		return fmt.Errorf("page session is missing document, scanner or channel")
	}
	defer close(s.done)
	defer s.cache.Clear()

	s.runCtx = ctx
	annotator.InjectStylesheet(s.doc)

	var rescans <-chan watcher.Reason
	if s.watcher != nil {
		s.watcher.Watch(s.doc)
		if err := s.watcher.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := s.watcher.Stop(context.Background()); err != nil {
				s.warn("stop watcher", "err", err)
			}
		}()
		rescans = s.watcher.C()
	}

	s.scan()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-s.completions:
			s.complete(c)
		case fn := <-s.actions:
			fn()
		case reason := <-rescans:
			s.debug("rescan", "reason", reason)
			s.scan()
		}
	}
}

// Do runs fn on the session goroutine and waits for it.
func (s *Session) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.actions <- wrapped:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Scan runs one pass over the document now.
func (s *Session) Scan(ctx context.Context) (ScanReport, error) {
	var report ScanReport
	err := s.Do(ctx, func() { report = s.scan() })
	return report, err
}

// WaitIdle blocks until no classification request is outstanding.
func (s *Session) WaitIdle(ctx context.Context) error {
	idle := make(chan struct{})
	err := s.Do(ctx, func() {
		if s.inFlight == 0 {
			close(idle)
			return
		}
		s.idleWaiters = append(s.idleWaiters, idle)
	})
	if err != nil {
		return err
	}

	select {
	case <-idle:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HTML renders the annotated document.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var (
		out    string
		render error
	)
	if err := s.Do(ctx, func() { out, render = s.doc.HTML() }); err != nil {
		return "", err
	}
	return out, render
}

// Stats reports counters from the session goroutine.
func (s *Session) Stats(ctx context.Context) (SessionStats, error) {
	var stats SessionStats
	err := s.Do(ctx, func() {
		stats = s.stats
		stats.InFlight = s.inFlight
		stats.CacheSize = s.cache.Len()
	})
	return stats, err
}

// Cached reads the page cache from the session goroutine.
func (s *Session) Cached(ctx context.Context, key domain.PostIdentity) (domain.ClassificationEntry, bool, error) {
	var (
		entry domain.ClassificationEntry
		ok    bool
	)
	err := s.Do(ctx, func() { entry, ok = s.lookup(key) })
	return entry, ok, err
}

func (s *Session) scan() ScanReport {
	s.stats.Scans++
	var report ScanReport

	for _, post := range s.scanner.DiscoverPosts(s.doc) {
		report.Discovered++
		decision := s.scanner.Decide(post, s.lookup)

		switch decision.Action {
		case scanner.ActionReapply:
			s.annotator.Render(post, decision.Entry.Scores)
			report.Reapplied++
		case scanner.ActionRequest:
			if _, inFlight := s.pending[decision.Key]; inFlight {
				report.Skipped++
				continue
			}
			s.request(post, decision)
			report.Requested++
		default:
			report.Skipped++
		}
	}

	if report.Requested > 0 || report.Reapplied > 0 {
		s.debug("scan finished", "discovered", report.Discovered, "requested", report.Requested, "reapplied", report.Reapplied)
	}
	return report
}

func (s *Session) request(post *goquery.Selection, decision scanner.Decision) {
	s.annotator.MarkPending(post)
	s.pending[decision.Key] = struct{}{}
	s.inFlight++
	s.stats.Requests++

	ctx := s.runCtx
	req := messaging.Request{
		Type:   messaging.TypeAnalyze,
		Text:   decision.Text,
		PostID: string(decision.Key),
	}
	go func() {
		resp, err := s.channel.Call(ctx, req)
		select {
		case s.completions <- completion{key: decision.Key, resp: resp, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) complete(c completion) {
	delete(s.pending, c.key)
	s.inFlight--
	s.stats.Completions++
	defer s.notifyIdle()

	posts := s.postsFor(c.key)

	if c.err == nil && c.resp.Failed() {
		c.err = errors.New(c.resp.Error)
	}
	if c.err != nil {
		s.stats.Failures++
		s.warn("classification failed", "key", c.key, "err", c.err)
		for _, post := range posts {
			if page.StateOf(post) != domain.StateDone {
				s.annotator.RenderError(post)
			}
		}
		return
	}

	scores, warnings := classifier.Normalize(c.resp.Result)
	for _, warning := range warnings {
		s.warn("classifier response shape", "key", c.key, "detail", warning)
	}
	if len(scores) == 0 {
		s.debug("empty classification", "key", c.key)
		for _, post := range posts {
			if page.StateOf(post) != domain.StateDone {
				s.annotator.MarkDone(post)
			}
		}
		return
	}

	s.cache.Put(string(c.key), domain.ClassificationEntry{
		Key:        c.key,
		Scores:     scores.Clone(),
		InsertedAt: s.now(),
	})
	for _, post := range posts {
		s.annotator.Render(post, scores)
	}
}

func (s *Session) postsFor(key domain.PostIdentity) []*goquery.Selection {
	var matches []*goquery.Selection
	for _, post := range s.scanner.DiscoverPosts(s.doc) {
		text := s.scanner.ExtractText(post)
		if text == "" {
			continue
		}
		if s.scanner.Identity(post, text) == key {
			matches = append(matches, post)
		}
	}
	return matches
}

func (s *Session) lookup(key domain.PostIdentity) (domain.ClassificationEntry, bool) {
	entry, ok := s.cache.Get(string(key))
	if !ok {
		return domain.ClassificationEntry{}, false
	}
	return entry.Clone(), true
}

func (s *Session) notifyIdle() {
	if s.inFlight != 0 {
		return
	}
	for _, waiter := range s.idleWaiters {
		close(waiter)
	}
	s.idleWaiters = nil
}

func (s *Session) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Session) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
