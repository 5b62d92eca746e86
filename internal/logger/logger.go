package logger

import (
	"strings"

	"go.uber.org/zap"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a JSON logger for production and a console logger otherwise.
func New(env string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop discards everything. Used by tests and tools that do not log.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, keysAndValues...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(keysAndValues...)}
}
