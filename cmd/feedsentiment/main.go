package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"FeedSentiment/internal/app"
	"FeedSentiment/internal/config"
	"FeedSentiment/internal/logging"
)

type globalOptions struct {
	Config   string `short:"c" long:"config" env:"FEED_SENTIMENT_CONFIG" description:"Path to the YAML configuration file"`
	LogLevel string `long:"log-level" description:"Override the configured log level (debug, info, warn, error)"`
}

func (g *globalOptions) load() config.Config {
	cfg := config.Load(g.Config)
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	return cfg
}

func (g *globalOptions) application() *app.Application {
	return newApplication(g.load())
}

func newApplication(cfg config.Config) *app.Application {
	return app.New(cfg, logging.New(cfg.Logging.Level))
}

type serveCommand struct {
	global *globalOptions
	ctx    context.Context

	Listen string `long:"listen" description:"Listen address (defaults to background.listen)"`
}

func (c *serveCommand) Execute([]string) error {
	cfg := c.global.load()
	if c.Listen != "" {
		cfg.Background.Listen = c.Listen
	}
	return newApplication(cfg).Serve(c.ctx)
}

type annotateCommand struct {
	global *globalOptions
	ctx    context.Context

	Output string `short:"o" long:"output" default:"-" description:"Where to write the annotated HTML (- for stdout)"`
	Args   struct {
		Input string `positional-arg-name:"page" description:"Saved page file or http(s) URL"`
	} `positional-args:"yes" required:"yes"`
}

func (c *annotateCommand) Execute([]string) error {
	return c.global.application().Annotate(c.ctx, c.Args.Input, c.Output)
}

type watchCommand struct {
	global *globalOptions
	ctx    context.Context

	URL    string `long:"url" description:"Feed page to poll (defaults to watch.url)"`
	Output string `short:"o" long:"output" description:"Snapshot file (defaults to watch.output)"`
}

func (c *watchCommand) Execute([]string) error {
	return c.global.application().Watch(c.ctx, c.URL, c.Output)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var global globalOptions
	parser := flags.NewParser(&global, flags.Default)

	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"serve", "Run the background service", "Accept analyze messages over HTTP and call the classifier.", &serveCommand{global: &global, ctx: ctx}},
		{"annotate", "Annotate a saved feed page", "Classify every post of a page once and write the annotated HTML.", &annotateCommand{global: &global, ctx: ctx}},
		{"watch", "Watch a live feed page", "Poll a feed page, annotate new posts as they appear and keep a snapshot on disk.", &watchCommand{global: &global, ctx: ctx}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.short, cmd.long, cmd.data); err != nil {
			logging.New("error").Error("register command", "command", cmd.name, "error", err)
			os.Exit(2)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				return
			}
			os.Exit(2)
		}
		logging.New("error").Error("application stopped", "error", err)
		os.Exit(1)
	}
}
