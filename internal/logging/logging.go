package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level string
	// File enables a JSON log file next to console output. Empty disables it.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(options Options) (*zap.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stdout), level),
	}

	if path := strings.TrimSpace(options.File); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positiveOr(options.MaxSizeMB, 50),
			MaxBackups: positiveOr(options.MaxBackups, 5),
			MaxAge:     positiveOr(options.MaxAgeDays, 28),
			Compress:   true,
		}
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func ParseLevel(raw string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}
	level, err := zapcore.ParseLevel(normalized)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func positiveOr(value int, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
