// Package applog is the process-wide structured logger used by every
// component of the page store. It wraps github.com/sirupsen/logrus rather
// than the standard library's log/slog, matching the logging stack carried
// by the rest of the retrieval pack (leftmike-maho.v1, zhukovaskychina-xmysql-server)
// while following the teacher's own pkg/logging/logger.go structure:
// a Config, a lazily-initialized global, and level-named package functions.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger   *logrus.Logger
	loggerMu sync.RWMutex
	logFile  *os.File
	isInited bool
	initOnce sync.Once
)

// Level is logging verbosity, named the way the teacher's Config.Level was.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	OutputPath string // empty for stdout, else a file path
	Format     string // "json" or "text"
}

// Init initializes the global logger. Calling Init twice without an
// intervening Close returns an error to prevent silently discarding the
// first configuration.
func Init(config Config) error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return fmt.Errorf("logger already initialized; call Close() first to reinitialize")
	}

	l := logrus.New()

	if config.OutputPath == "" {
		l.SetOutput(os.Stdout)
	} else {
		dir := filepath.Dir(config.OutputPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
		file, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		l.SetOutput(file)
		logFile = file
	}

	switch config.Level {
	case LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		l.SetLevel(logrus.WarnLevel)
	case LevelError:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger = l
	isInited = true
	return nil
}

// InitDefault initializes the logger with INFO level, stdout, text format.
// Safe to call multiple times; only the first call has an effect.
func InitDefault() {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if isInited {
		return
	}

	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	logger = l
	isInited = true
}

// Close releases any open log file. Safe to call multiple times.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if !isInited {
		return nil
	}

	var err error
	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}

	logger = nil
	isInited = false
	initOnce = sync.Once{}
	return err
}

// Get returns the current logger, lazily initializing with defaults on
// first use.
func Get() *logrus.Logger {
	loggerMu.RLock()
	if isInited {
		l := logger
		loggerMu.RUnlock()
		return l
	}
	loggerMu.RUnlock()

	initOnce.Do(InitDefault)

	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	return l
}

// For returns a logger entry scoped to a component name, the way each core
// component (buffer pool, lock manager, WAL, recovery) tags its log lines.
func For(component string) *logrus.Entry {
	return Get().WithField("component", component)
}
