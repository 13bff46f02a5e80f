// Package logging builds the zap logger and its gorm adapter.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing to stderr. encoding is "json" or "console".
// The returned level can be changed at runtime.
func New(level, encoding string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl := zap.NewAtomicLevel()
	if err := SetLevel(lvl, level); err != nil {
		return nil, lvl, err
	}
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(encoding, "console") {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	log, err := cfg.Build()
	if err != nil {
		return nil, lvl, fmt.Errorf("build zap logger: %w", err)
	}
	return log, lvl, nil
}

// SetLevel parses level ("debug", "info", ...) into lvl. Empty means info.
func SetLevel(lvl zap.AtomicLevel, level string) error {
	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	lvl.SetLevel(l)
	return nil
}
