// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package log holds the logger shared by all mixedstack packages.
package log // import "go.opentelemetry.io/mixedstack/internal/log"

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	ErrorLevel = logrus.ErrorLevel
	WarnLevel  = logrus.WarnLevel
	InfoLevel  = logrus.InfoLevel
	DebugLevel = logrus.DebugLevel

	// time.RFC3339Nano removes trailing zeros from the seconds field.
	// The following format doesn't (fixed-width output).
	timeStampFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// Labels adds key/value pairs to a message. Keep the number of distinct
// values low, they end up as log labels.
type Labels map[string]any

// globalLogger holds the logger used within go.opentelemetry.io/mixedstack.
// Captures may log from many goroutines at once, so swapping the logger is
// done through an atomic pointer.
var globalLogger = func() *atomic.Pointer[logrus.Logger] {
	p := new(atomic.Pointer[logrus.Logger])
	p.Store(newDefaultLogger())
	return p
}()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:          true,
		FullTimestamp:          true,
		TimestampFormat:        timeStampFormat,
		DisableSorting:         true,
		DisableLevelTruncation: true,
		QuoteEmptyFields:       true,
	})
	l.SetLevel(InfoLevel)
	l.SetReportCaller(false)
	return l
}

func logger() *logrus.Logger {
	return globalLogger.Load()
}

// SetLogger replaces the global logger.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		return
	}
	globalLogger.Store(l)
}

// SetLevel sets the level of the global logger.
func SetLevel(level logrus.Level) {
	logger().SetLevel(level)
}

// SetOutput redirects the global logger.
func SetOutput(w io.Writer) {
	logger().SetOutput(w)
}

// IsDebug reports whether debug messages are emitted. Use it to skip building
// expensive log arguments on hot paths.
func IsDebug() bool {
	return logger().IsLevelEnabled(DebugLevel)
}

// With returns an entry carrying the given labels.
func With(labels Labels) *logrus.Entry {
	return logger().WithFields(logrus.Fields(labels))
}

// Errorf logs error messages about exceptional states.
func Errorf(format string, args ...any) {
	logger().Errorf(format, args...)
}

// Warnf logs conditions that are not errors but likely need attention.
func Warnf(format string, args ...any) {
	logger().Warnf(format, args...)
}

// Infof logs informational messages.
func Infof(format string, args ...any) {
	logger().Infof(format, args...)
}

// Debugf logs detailed debugging information.
func Debugf(format string, args ...any) {
	logger().Debugf(format, args...)
}

// Debug logs a debug message without formatting.
func Debug(args ...any) {
	logger().Debug(args...)
}
