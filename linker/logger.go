package linker

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the linker package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the linker package's logger.
// This must be called before any scope is created.
func SetLogger(l *zap.Logger) {
	logger = l
}

// scopeLogger tags every entry with the scope name.
func scopeLogger(name string) *zap.Logger {
	return Logger().With(zap.String("scope", name))
}
