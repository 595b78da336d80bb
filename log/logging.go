// Package log provides a public logging interface for go.opentelemetry.io/mixedstack.
package log // import "go.opentelemetry.io/mixedstack/log"

import (
	"github.com/sirupsen/logrus"

	"go.opentelemetry.io/mixedstack/internal/log"
)

// SetLevel configures the log level of the internal logger.
func SetLevel(level logrus.Level) {
	log.SetLevel(level)
}

// SetLogger replaces the internal logger.
func SetLogger(l *logrus.Logger) {
	log.SetLogger(l)
}
