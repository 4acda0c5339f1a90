package main

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logger is a global instance of the custom logger
var logger *customLogger

// customLogger owns the rotating file the standard logger writes to
type customLogger struct {
	logFile *lumberjack.Logger
}

// initLogger initializes the global logger based on configuration and
// points the standard logger at the same writers
func initLogger(cfg *loggerConfig) {
	if cfg == nil || cfg.File == "" {
		cfg = &loggerConfig{
			File:       "gameping.log",
			MaxSize:    10,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		}
	}

	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 10
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30
	}

	logFile := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}

	writers := []io.Writer{logFile}
	// stderr so the display on stdout stays intact when redirected
	if cfg.ConsoleLogging {
		writers = append(writers, os.Stderr)
	}
	multiWriter := io.MultiWriter(writers...)

	logger = &customLogger{logFile: logFile}

	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags)
}

// Close closes the log file
func (l *customLogger) Close() {
	if l.logFile != nil {
		l.logFile.Close()
	}
}
