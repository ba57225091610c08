package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"FeedSentiment/internal/api"
	"FeedSentiment/internal/cache"
	"FeedSentiment/internal/config"
	"FeedSentiment/internal/infrastructure/classifier"
	"FeedSentiment/internal/infrastructure/parser"
	"FeedSentiment/internal/infrastructure/scheduler"
	"FeedSentiment/internal/infrastructure/storage"
	"FeedSentiment/internal/logging"
	"FeedSentiment/internal/messaging"
	"FeedSentiment/internal/ports"
	"FeedSentiment/internal/scanner"
	"FeedSentiment/internal/usecase"
	"FeedSentiment/internal/watcher"
	"FeedSentiment/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	source ports.PageSource
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		source: parser.NewPageSource(nil, logging.Component(baseLogger, "source")),
	}
}

// Serve runs the background service until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	analyzer, closeAnalyzer, err := a.buildAnalyzer()
	if err != nil {
		return err
	}
	defer closeAnalyzer()

	engine := api.NewServer(api.NewHandler(analyzer, logging.Component(a.logger, "api")), api.ServerOptions{
		APIKey:         a.cfg.Background.APIKey,
		AllowedOrigins: a.cfg.Background.AllowedOrigins,
		Logger:         a.logger,
	})

	srv := &http.Server{
		Addr:              a.cfg.Background.Listen,
		Handler:           engine,
		ErrorLog:          logger.New("http", a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("background service listening", "addr", srv.Addr, "auth", a.cfg.Background.APIKey != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("background service stopped")
	return nil
}

// Annotate loads input, annotates every post once all requests resolved and
// writes the document to output ("" or "-" means stdout).
func (a *Application) Annotate(ctx context.Context, input, output string) error {
	feed, err := a.buildScanner()
	if err != nil {
		return err
	}

	doc, err := parser.LoadDocument(ctx, a.source, input)
	if err != nil {
		return err
	}

	channel, closeChannel, err := a.buildChannel()
	if err != nil {
		return err
	}
	defer closeChannel()

	session := usecase.NewSession(usecase.SessionDeps{
		Document: doc,
		Scanner:  feed,
		Channel:  channel,
		Logger:   logging.Component(a.logger, "session"),
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- session.Run(runCtx) }()

	if err := session.WaitIdle(ctx); err != nil {
		return fmt.Errorf("wait for classifications: %w", err)
	}
	stats, err := session.Stats(ctx)
	if err != nil {
		return err
	}
	markup, err := session.HTML(ctx)
	if err != nil {
		return err
	}

	cancel()
	if err := <-done; err != nil {
		return err
	}

	a.logger.Info("annotation finished", "requests", stats.Requests, "failures", stats.Failures, "cached", stats.CacheSize)
	return writeOutput(output, markup)
}

// Watch keeps a session alive for the feed at location, polling it for new
// posts and writing snapshots to output, until ctx is cancelled.
func (a *Application) Watch(ctx context.Context, location, output string) error {
	if location == "" {
		location = a.cfg.Watch.URL
	}
	if location == "" {
		return fmt.Errorf("watch: no feed location configured")
	}
	if output == "" {
		output = a.cfg.Watch.Output
	}

	feed, err := a.buildScanner()
	if err != nil {
		return err
	}

	doc, err := parser.LoadDocument(ctx, a.source, location)
	if err != nil {
		return err
	}

	channel, closeChannel, err := a.buildChannel()
	if err != nil {
		return err
	}
	defer closeChannel()

	cronLog := logger.New("cron", a.logger)
	w := watcher.New(watcher.Options{
		SettleDelay: a.cfg.Page.SettleDelay,
		Periodic:    scheduler.NewCronScheduler(scheduler.Every(a.cfg.Page.RescanInterval), cronLog),
		Logger:      logging.Component(a.logger, "watcher"),
	})

	session := usecase.NewSession(usecase.SessionDeps{
		Document: doc,
		Scanner:  feed,
		Channel:  channel,
		Watcher:  w,
		Logger:   logging.Component(a.logger, "session"),
	})

	poller := usecase.NewPoller(usecase.PollerDeps{
		Source:    a.source,
		Driver:    scheduler.NewCronScheduler(scheduler.Every(a.cfg.Watch.PollInterval), cronLog),
		Session:   session,
		Document:  doc,
		Scanner:   feed,
		Location:  location,
		Container: a.cfg.Watch.Container,
		Output:    output,
		Logger:    logging.Component(a.logger, "poller"),
	})

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}
	a.logger.Info("watching feed", "location", location, "poll", a.cfg.Watch.PollInterval, "rescan", a.cfg.Page.RescanInterval)

	err = <-done
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := poller.Stop(stopCtx); stopErr != nil {
		a.logger.Warn("stop poller", "err", stopErr)
	}
	return err
}

func (a *Application) buildScanner() (*scanner.FeedScanner, error) {
	registry := scanner.NewRegistry()
	selectors := a.cfg.Page.Selectors
	custom := parser.PlatformSpec{
		Name:             parser.PlatformCustom,
		Posts:            selectors.Posts,
		Texts:            selectors.Texts,
		PermalinkPattern: selectors.PermalinkPattern,
		IDAttributes:     selectors.IDAttributes,
	}
	if err := parser.RegisterDefaults(registry, custom); err != nil {
		return nil, fmt.Errorf("register platforms: %w", err)
	}

	platform, err := registry.Resolve(a.cfg.Page.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, registry.Names())
	}
	return scanner.New(platform, a.cfg.Page.TextKeyLength), nil
}

// buildChannel talks to a remote background service when one is configured
// and otherwise hosts the background context in-process.
func (a *Application) buildChannel() (messaging.Channel, func(), error) {
	if url := a.cfg.Background.URL; url != "" {
		a.logger.Debug("using remote background service", "url", url)
		return messaging.NewHTTPChannel(url, a.cfg.Background.APIKey, nil), func() {}, nil
	}

	analyzer, closeAnalyzer, err := a.buildAnalyzer()
	if err != nil {
		return nil, nil, err
	}
	dispatcher := messaging.NewDispatcher(analyzer, logging.Component(a.logger, "messaging"))
	return dispatcher, func() {
		dispatcher.Wait()
		closeAnalyzer()
	}, nil
}

func (a *Application) buildAnalyzer() (*usecase.Analyzer, func(), error) {
	var (
		history ports.HistoryRepository
		db      *sql.DB
	)
	if path := a.cfg.History.Path; path != "" {
		var err error
		db, err = storage.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		history = storage.NewHistoryRepository(db)
	}

	var limiter *rate.Limiter
	if a.cfg.Classifier.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.Classifier.RatePerSecond), a.cfg.Classifier.Burst)
	}

	client := classifier.NewClient(a.cfg.Classifier.Endpoint, classifier.Options{
		APIKey:  a.cfg.Classifier.APIKey,
		Timeout: a.cfg.Classifier.Timeout,
		Logger:  logging.Component(a.logger, "classifier"),
	})

	analyzer := usecase.NewAnalyzer(usecase.AnalyzerDeps{
		Classifier: client,
		History:    history,
		Cache:      cache.New[json.RawMessage](a.cfg.Background.CacheTTL, a.cfg.Background.CacheMaxEntries),
		Limiter:    limiter,
		Logger:     logging.Component(a.logger, "analyzer"),
	})

	closeFn := func() {
		analyzer.Close()
		if db != nil {
			if err := db.Close(); err != nil {
				a.logger.Warn("close history", "err", err)
			}
		}
	}
	return analyzer, closeFn, nil
}

func writeOutput(path, markup string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(os.Stdout, markup)
		return err
	}
	return usecase.WriteFileAtomic(path, []byte(markup))
}
