// Package log provides centralized logging for the phrates binaries using zap.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// Init initializes the package-level logger
func Init(debug bool) error {
	var zapLogger *zap.Logger
	var err error

	if debug {
		zapLogger, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		zapLogger, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	baseLogger = zapLogger
	log = zapLogger.Sugar()
	return nil
}

// GetZapLogger returns the base zap logger
func GetZapLogger() *zap.Logger {
	if baseLogger == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
	return baseLogger
}

// GetSugaredLogger returns the sugared logger instance. Library packages that take
// a logger should be handed this, with the caller skip removed.
func GetSugaredLogger() *zap.SugaredLogger {
	if log == nil {
		baseLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = baseLogger.Sugar()
	}
	return log.WithOptions(zap.AddCallerSkip(-1))
}

// With returns a child logger carrying the given key/value pairs.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return GetSugaredLogger().With(keysAndValues...)
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

func sugar() *zap.SugaredLogger {
	if log == nil {
		GetZapLogger()
	}
	return log
}

// Package-level convenience functions
func Debug(args ...interface{}) {
	sugar().Debug(args...)
}

func Debugf(template string, args ...interface{}) {
	sugar().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	sugar().Debugw(msg, keysAndValues...)
}

func Info(args ...interface{}) {
	sugar().Info(args...)
}

func Infof(template string, args ...interface{}) {
	sugar().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

func Warn(args ...interface{}) {
	sugar().Warn(args...)
}

func Warnf(template string, args ...interface{}) {
	sugar().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	sugar().Warnw(msg, keysAndValues...)
}

func Error(args ...interface{}) {
	sugar().Error(args...)
}

func Errorf(template string, args ...interface{}) {
	sugar().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	sugar().Errorw(msg, keysAndValues...)
}

func Fatal(args ...interface{}) {
	sugar().Fatal(args...)
	os.Exit(1)
}

func Fatalf(template string, args ...interface{}) {
	sugar().Fatalf(template, args...)
	os.Exit(1)
}
