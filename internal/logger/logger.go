// Package logger builds the zap loggers handed to the connection and
// engine layers. It replaces what used to be a pair of
// log.Printf-wrapping package functions with the structured, leveled
// logger the rest of this codebase's ancestry already standardized on.
package logger

import "go.uber.org/zap"

// New builds a production JSON logger at the given level ("debug", "info",
// "warn", "error"). An empty level defaults to "info".
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// Nop returns a logger that discards everything, the default for any
// component constructed without an explicit WithLogger option.
func Nop() *zap.Logger {
	return zap.NewNop()
}
