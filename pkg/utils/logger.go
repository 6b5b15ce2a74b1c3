package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/garyjia/trip-approval/internal/config"
)

// NewLogger builds the process logger from the logger section of the configuration.
// Every entry carries the configured service name.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logger.level: %w", err)
		}
	}

	format := cfg.Format
	if format == "" {
		format = config.LogFormatJSON
	}
	encoder := zap.NewProductionEncoderConfig()
	if format == config.LogFormatConsole {
		encoder = zap.NewDevelopmentEncoderConfig()
		encoder.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encoder.TimeKey = "timestamp"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	output := cfg.OutputPath
	if output == "" {
		output = "stdout"
	}
	if output != "stdout" && output != "stderr" {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	zc := zap.Config{
		Level:            level,
		Encoding:         format,
		EncoderConfig:    encoder,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Service != "" {
		zc.InitialFields = map[string]interface{}{"service": cfg.Service}
	}

	return zc.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}
