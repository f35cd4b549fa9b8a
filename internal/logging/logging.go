package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide slog logger. Output goes to stderr so report
// output on stdout stays clean. Warn and above by default, Debug with verbose.
func Init(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
