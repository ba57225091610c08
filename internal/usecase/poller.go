package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"FeedSentiment/internal/domain"
	"FeedSentiment/internal/page"
	"FeedSentiment/internal/ports"
	"FeedSentiment/internal/scanner"
)

// PollerDeps wires the watch-mode feed poller.
type PollerDeps struct {
	Source    ports.PageSource
	Driver    ports.Scheduler
	Session   *Session
	Document  *page.Document
	Scanner   *scanner.FeedScanner
	Location  string
	Container string
	Output    string
	Logger    *slog.Logger
}

// Poller re-fetches the feed page on a schedule and appends posts it has
// not seen yet into the session document, the way infinite scroll would.
type Poller struct {
	source    ports.PageSource
	driver    ports.Scheduler
	session   *Session
	doc       *page.Document
	scanner   *scanner.FeedScanner
	location  string
	container string
	output    string
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[domain.PostIdentity]struct{}
}

// NewPoller returns a helper to start/stop recurring feed polls.
func NewPoller(deps PollerDeps) *Poller {
	container := deps.Container
	if container == "" {
		container = "body"
	}
	return &Poller{
		source:    deps.Source,
		driver:    deps.Driver,
		session:   deps.Session,
		doc:       deps.Document,
		scanner:   deps.Scanner,
		location:  deps.Location,
		container: container,
		output:    deps.Output,
		logger:    deps.Logger,
		seen:      map[domain.PostIdentity]struct{}{},
	}
}

// Start records the posts already in the document and registers Poll
// with the scheduler.
func (p *Poller) Start(ctx context.Context) error {
	if p.driver == nil || p.source == nil || p.session == nil {
		return nil
	}

	if err := p.session.Do(ctx, func() {
		p.remember(p.scanner.DiscoverPosts(p.doc))
	}); err != nil {
		return fmt.Errorf("seed poller: %w", err)
	}

	job := func(trigger time.Time) {
		added, err := p.Poll(ctx)
		if err != nil {
			p.warn("poll feed", "err", err, "trigger", trigger.Format(time.RFC3339))
			return
		}
		p.debug("poll feed", "added", added)
	}

	return p.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (p *Poller) Stop(ctx context.Context) error {
	if p.driver == nil {
		return nil
	}
	return p.driver.Stop(ctx)
}

// Poll fetches the feed once and appends unseen posts. It returns how many
// posts were added.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	body, err := p.source.Fetch(ctx, p.location)
	if err != nil {
		return 0, fmt.Errorf("fetch feed: %w", err)
	}
	fetched, err := page.Parse(body)
	_ = body.Close()
	if err != nil {
		return 0, err
	}

	fresh := p.unseen(p.scanner.DiscoverPosts(fetched))
	if len(fresh) == 0 {
		return 0, p.snapshot(ctx)
	}

	var appendErr error
	if err := p.session.Do(ctx, func() {
		container := p.doc.Find(p.container).First()
		if container.Length() == 0 {
			container = p.doc.Find("body").First()
		}
		_, appendErr = p.doc.AppendHTML(container, strings.Join(fresh, ""))
	}); err != nil {
		return 0, err
	}
	if appendErr != nil {
		return 0, appendErr
	}

	return len(fresh), p.snapshot(ctx)
}

func (p *Poller) unseen(posts []*goquery.Selection) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fresh []string
	for _, post := range posts {
		key, ok := p.identity(post)
		if !ok {
			continue
		}
		if _, dup := p.seen[key]; dup {
			continue
		}
		markup, err := goquery.OuterHtml(post)
		if err != nil {
			p.warn("render fetched post", "key", key, "err", err)
			continue
		}
		p.seen[key] = struct{}{}
		fresh = append(fresh, markup)
	}
	return fresh
}

func (p *Poller) remember(posts []*goquery.Selection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, post := range posts {
		if key, ok := p.identity(post); ok {
			p.seen[key] = struct{}{}
		}
	}
}

func (p *Poller) identity(post *goquery.Selection) (domain.PostIdentity, bool) {
	text := p.scanner.ExtractText(post)
	if text == "" {
		return "", false
	}
	return p.scanner.Identity(post, text), true
}

func (p *Poller) snapshot(ctx context.Context) error {
	if p.output == "" {
		return nil
	}
	markup, err := p.session.HTML(ctx)
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}
	return WriteFileAtomic(p.output, []byte(markup))
}

// WriteFileAtomic replaces path through a temporary file in the same directory.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".feedsentiment-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (p *Poller) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Poller) warn(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
