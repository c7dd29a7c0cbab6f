package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amirk1998/notebox/internal/config"
)

type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New builds a zap-backed logger. An empty level means info and an empty
// format means json.
func New(cfg config.LoggerConfig, service string) (*Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	}

	levelName := cfg.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{"stderr"}

	if service != "" {
		zapConfig.InitialFields = map[string]interface{}{
			"service": service,
		}
	}

	base, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return &Logger{SugaredLogger: base.Sugar(), base: base}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	base := zap.NewNop()
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// WithComponent tags every entry with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return l.WithFields("component", name)
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	sugared := l.SugaredLogger.With(fields...)
	return &Logger{SugaredLogger: sugared, base: sugared.Desugar()}
}

// Zap exposes the structured logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Close() error {
	// Sync on stderr returns EINVAL on some platforms; nothing to report.
	_ = l.base.Sync()
	return nil
}
