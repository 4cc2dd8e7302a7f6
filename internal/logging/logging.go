// Package logging builds the zap loggers used by the entry points.
//
// Nothing logged through these loggers may carry secret material. Fields that
// would hold a secret are replaced with Redacted so the omission is visible.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const redactedPlaceholder = "[redacted]"

// DefaultLevel keeps the interactive console free of log lines.
const DefaultLevel = "error"

// Options selects where and how much to log.
type Options struct {
	// Level is a zap level name. Empty means DefaultLevel.
	Level string
	// File, when set, switches to JSON lines written to a size-rotated file.
	File string
	// Console receives console-encoded output when File is empty. Nil means
	// os.Stderr.
	Console io.Writer
}

// New builds a logger from opts. The returned close function flushes and
// releases the sink.
func New(opts Options) (*zap.Logger, func() error, error) {
	name := opts.Level
	if name == "" {
		name = DefaultLevel
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var (
		core    zapcore.Core
		closeFn = func() error { return nil }
	)
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level)
		closeFn = rotator.Close
	} else {
		w := opts.Console
		if w == nil {
			w = os.Stderr
		}
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	}

	log := zap.New(core)
	return log, func() error {
		_ = log.Sync()
		return closeFn()
	}, nil
}

// Redacted marks a field whose value was intentionally left out.
func Redacted(key string) zap.Field {
	return zap.String(key, redactedPlaceholder)
}
