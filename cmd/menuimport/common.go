package main

import (
	"io"
	"log/slog"

	"github.com/JonMunkholm/menuimport/internal/config"
	"github.com/JonMunkholm/menuimport/internal/logging"
)

// loadConfig reads the environment and applies the command line overrides.
func loadConfig(db *dbFlags, extra ...func(*config.Config)) (*config.Config, error) {
	overrides := append([]func(*config.Config){func(c *config.Config) {
		if db.driver != "" {
			c.Database.Driver = db.driver
		}
		if db.url != "" {
			c.Database.URL = db.url
		}
	}}, extra...)

	cfg, err := config.Load(overrides...)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return cfg, nil
}

// setupLogger sends logs to w, keeping stdout free for command output.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	logger := logging.New(w, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return logger
}
