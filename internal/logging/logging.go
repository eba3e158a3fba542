package logging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string
	Format string
}

var (
	baseLogger *zap.Logger
	sugar      *zap.SugaredLogger
	traceID    atomic.Value
	tickID     uint64
)

func init() {
	baseLogger = zap.NewNop()
	sugar = baseLogger.Sugar()
}

func Init(cfg Config) error {
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
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %s", cfg.Format)
	}

	atomLevel := zap.NewAtomicLevel()
	if err := atomLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %s", cfg.Level)
	}
	zapCfg.Level = atomLevel

	logger, err := zapCfg.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	baseLogger = logger
	sugar = logger.Sugar()
	return nil
}

// Replace swaps the process logger and returns a func restoring the previous one.
func Replace(logger *zap.Logger) func() {
	prev := baseLogger
	baseLogger = logger
	sugar = logger.Sugar()
	return func() {
		baseLogger = prev
		sugar = prev.Sugar()
	}
}

func Sync() {
	if baseLogger != nil {
		_ = baseLogger.Sync()
	}
}

func SetTraceID(id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	traceID.Store(id)
}

func NewTraceID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "trace-unknown"
	}
	return hex.EncodeToString(buf)
}

// StartTick advances the host tick counter attached to every entry.
func StartTick() uint64 {
	return atomic.AddUint64(&tickID, 1)
}

func Debugf(format string, args ...interface{}) {
	withFields().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	withFields().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	withFields().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	withFields().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	withFields().Fatalf(format, args...)
}

// Scoped carries fixed fields, typically the skin and measure a message belongs to.
type Scoped struct {
	keysAndValues []interface{}
}

func With(keysAndValues ...interface{}) *Scoped {
	return &Scoped{keysAndValues: keysAndValues}
}

func (s *Scoped) Debugf(format string, args ...interface{}) {
	withFields().With(s.keysAndValues...).Debugf(format, args...)
}

func (s *Scoped) Infof(format string, args ...interface{}) {
	withFields().With(s.keysAndValues...).Infof(format, args...)
}

func (s *Scoped) Warnf(format string, args ...interface{}) {
	withFields().With(s.keysAndValues...).Warnf(format, args...)
}

func (s *Scoped) Errorf(format string, args ...interface{}) {
	withFields().With(s.keysAndValues...).Errorf(format, args...)
}

func withFields() *zap.SugaredLogger {
	tid, _ := traceID.Load().(string)
	if tid == "" {
		tid = "trace-unknown"
	}
	currentTick := atomic.LoadUint64(&tickID)
	return sugar.With(
		"trace_id", tid,
		"tick_id", currentTick,
		"log_id", fmt.Sprintf("%s-%d", tid, currentTick),
	)
}
