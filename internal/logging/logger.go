package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger passed through the application.
type Logger struct {
	*zap.SugaredLogger
}

type Config struct {
	Level      string
	OutputPath string
	Encoding   string
	DevMode    bool
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		OutputPath: "stdout",
		Encoding:   "json",
	}
}

func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	if cfg.DevMode {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}

	zl, err := zc.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{zl.Sugar()}, nil
}

// NewNop returns a logger that discards everything; handy in tests.
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{l.With(key, value)}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{l.With("error", err)}
}
