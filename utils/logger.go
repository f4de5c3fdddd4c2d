package utils

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures NewLogger
type LogOptions struct {
	Level      string
	Format     string // json or text
	Output     string // stdout, file or both
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// NewLogger builds a logrus logger with ISO 8601 timestamps. File output is
// rotated by lumberjack.
func NewLogger(opts LogOptions) *log.Logger {
	logger := log.New()

	if strings.EqualFold(opts.Format, "text") {
		logger.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	} else {
		logger.SetFormatter(&log.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	}

	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	var rotating io.Writer
	if opts.FilePath != "" {
		rotating = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
	}

	switch strings.ToLower(opts.Output) {
	case "file":
		if rotating != nil {
			logger.SetOutput(rotating)
		} else {
			logger.SetOutput(os.Stdout)
		}
	case "both":
		if rotating != nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, rotating))
		} else {
			logger.SetOutput(os.Stdout)
		}
	default:
		logger.SetOutput(os.Stdout)
	}

	return logger
}

// DiscardLogger returns a logger that drops everything, for tests and tools.
func DiscardLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}
