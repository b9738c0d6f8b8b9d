// Package logging provides the process-wide structured logger.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init initializes the global sugared logger from LOG_LEVEL and, when
// LOG_FILE is set, routes output through a rotating file. Standard-library
// logs are redirected into zap so all logs are unified. Safe to call
// multiple times.
func Init() *zap.SugaredLogger {
	once.Do(func() {
		level := strings.ToLower(os.Getenv("LOG_LEVEL"))

		var logger *zap.Logger
		if file := os.Getenv("LOG_FILE"); file != "" {
			sink := zapcore.AddSync(&lumberjack.Logger{
				Filename:   file,
				MaxSize:    50, // megabytes
				MaxBackups: 5,
				MaxAge:     14, // days
			})
			enc := zap.NewProductionEncoderConfig()
			core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, zapLevel(level))
			logger = zap.New(core)
		} else if level == "debug" {
			l, _ := zap.NewDevelopment()
			logger = l
		} else {
			l, _ := zap.NewProduction()
			logger = l
		}

		_ = zap.RedirectStdLog(logger)
		sugar = logger.Sugar()
	})
	return sugar
}

// Sugar returns the initialized sugared logger.
func Sugar() *zap.SugaredLogger { return sugar }

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func init() {
	Init()
}
