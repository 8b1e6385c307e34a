// Package monitoring holds the process-wide diagnostic logger and the
// Prometheus metrics of the masking pipeline.
package monitoring

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Logf is the package-level printf-style logger. It writes through the zap
// logger installed by SetZap but may be replaced by SetLogger. Tests or
// production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	L().Sugar().Infof(format, v...)
}

// SetLogger replaces the printf-style logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// L returns the structured logger. It is a no-op logger until SetZap is called.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetZap installs the structured logger. Passing nil restores the no-op logger.
func SetZap(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		logger = zap.NewNop()
		return
	}
	logger = l
}

// NewLogger builds a zap logger for the CLI. Development mode uses the
// console encoder, otherwise JSON.
func NewLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
