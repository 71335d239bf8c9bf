package main

import (
	"log/slog"
	"os"
	"strings"

	"lsmbatch/pkg/config"
)

// initLogger configures the global slog.Logger (JSON or text).
func initLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Logger.Level))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{AddSource: true, Level: level}

	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)
}
