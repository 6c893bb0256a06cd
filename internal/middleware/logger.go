// Package middleware holds the zap logger factory and the HTTP middleware of
// the admin API.
package middleware

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/radiusdt/leadflow/internal/config"
)

// NewLogger builds the service logger. Format "console" selects the
// development encoder; anything else logs JSON.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "leadflow")), nil
}
