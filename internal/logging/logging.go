// ABOUTME: Structured logging for the mixgraph engine
// ABOUTME: Package-level zap sugared logger, silent until Init is called
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and encoder of the global logger
type Config struct {
	Level  string
	Format string
}

var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	sugar.Store(zap.NewNop().Sugar())
}

// InitFromEnv reads LOG_LEVEL and LOG_FORMAT
func InitFromEnv() error {
	return Init(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// Init replaces the global logger
func Init(cfg Config) error {
	return build(cfg, nil)
}

// InitFile routes logs to a file, used when the terminal is owned by the TUI
func InitFile(cfg Config, path string) error {
	return build(cfg, []string{path})
}

func build(cfg Config, outputs []string) error {
	level := strings.ToLower(strings.TrimSpace(cfg.Level))
	if level == "" {
		level = "info"
	}

	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format == "" {
		format = "console"
	}

	var zapCfg zap.Config
	switch format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
		if outputs == nil {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}
	if outputs != nil {
		zapCfg.OutputPaths = outputs
		zapCfg.ErrorOutputPaths = outputs
	}

	atomLevel := zap.NewAtomicLevel()
	if err := atomLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	zapCfg.Level = atomLevel

	logger, err := zapCfg.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	sugar.Store(logger.Sugar())
	return nil
}

// SetLogger installs an existing zap logger, mainly for tests
func SetLogger(l *zap.Logger) {
	sugar.Store(l.Sugar())
}

// Sync flushes buffered entries
func Sync() {
	_ = sugar.Load().Sync()
}

// With returns a child logger carrying the given fields.
// Unlike the package helpers it does not skip a caller frame.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return sugar.Load().Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(keysAndValues...)
}

func Debugf(format string, args ...interface{}) {
	sugar.Load().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	sugar.Load().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	sugar.Load().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	sugar.Load().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	sugar.Load().Fatalf(format, args...)
}
