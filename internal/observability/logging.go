// Package observability builds the quiz server's zap loggers. Every entry carries
// the "service" field, and each subsystem logs under its own component name so
// request rejections, broadcast drops and transport events can be filtered apart.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/mathrace/internal/config"
)

// ServiceName is attached to every log entry as the "service" field.
const ServiceName = "mathrace"

// Component names a subsystem logger.
type Component string

const (
	ComponentHandler   Component = "handler"
	ComponentBroadcast Component = "broadcast"
	ComponentWebSocket Component = "websocket"
	ComponentLifecycle Component = "lifecycle"
)

// Named returns base scoped to component; entries carry it as the logger name.
//
// Precondition: base must be non-nil.
func Named(base *zap.Logger, component Component) *zap.Logger {
	return base.Named(string(component))
}

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
		// Broadcast ticks log per delivery at debug; keep sampling off so drops are countable.
		zapCfg.Sampling = nil
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.InitialFields = map[string]any{"service": ServiceName}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
