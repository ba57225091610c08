package logger

import (
	"fmt"
	"log"
	"log/slog"
	"os"
)

// New returns a stdlib logger for component. With a base slog.Logger the
// lines are forwarded to it at error level; otherwise they go to stdout.
func New(component string, base *slog.Logger) *log.Logger {
	return NewAt(component, base, slog.LevelError)
}

// NewAt is New with the level used for forwarded lines.
func NewAt(component string, base *slog.Logger, level slog.Level) *log.Logger {
	if base == nil {
		prefix := fmt.Sprintf("[%s] ", component)
		return log.New(os.Stdout, prefix, log.LstdFlags|log.Lshortfile)
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), level)
}
