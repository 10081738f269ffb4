package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production runs always log JSON;
// elsewhere LOG_FORMAT picks between JSON and text output.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}

	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(slog.String("service", "fieldserve"))
	slog.SetDefault(logger)
	return logger
}
