// Package logger provides the process-wide logger used by the driver.
package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Init.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // optional JSON log file, rotated
	Console bool   // also log to stderr
}

var (
	globalLogger = zap.NewNop().Sugar()
	logFile      *lumberjack.Logger
	mu           sync.Mutex
)

// Init initializes the global logger.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	if opts.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level))
	}
	if opts.File != "" {
		logFile = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(logFile), level))
	}

	if len(cores) == 0 {
		globalLogger = zap.NewNop().Sugar()
		return nil
	}
	globalLogger = zap.New(zapcore.NewTee(cores...)).Named("roku").Sugar()
	return nil
}

// SetLogger replaces the global logger. Tests use it with zaptest.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l.Sugar()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	_ = globalLogger.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	get().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	get().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	get().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	get().Warnf(format, v...)
}

// GetWriter returns the underlying file writer, or io.Discard when logging
// to a file is disabled.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}
