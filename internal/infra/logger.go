package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the application slog.Logger. Output always goes to
// stdout; when a log file is configured it is duplicated into a rotating
// file as well.
func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	writers := []io.Writer{os.Stdout}

	if cfg.Logging.File != "" {
		_ = os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755)
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    orDefault(cfg.Logging.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.Logging.MaxBackups, 3),
			MaxAge:     orDefault(cfg.Logging.MaxAgeDays, 7),
			Compress:   cfg.Logging.Compress,
		})
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
