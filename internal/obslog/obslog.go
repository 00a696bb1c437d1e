// Package obslog holds the process-wide zap logger.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/config"
)

var (
	mu      sync.RWMutex
	current = zap.NewNop()
	level   = zap.NewAtomicLevel()
	logFile *os.File
)

func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set installs l as the global logger. nil installs a no-op.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	current = l
	mu.Unlock()
}

// SetLevel changes the minimum level of a logger built by Init.
func SetLevel(s string) { level.SetLevel(parseLevel(s)) }

// Init builds the global logger from cfg. Console and file sinks share one
// encoder; with neither enabled it falls back to stdout.
func Init(cfg config.LogConfig) error {
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	enc, ok := encoders[format]
	if !ok {
		format = "legacy"
		enc = encoders[format]
	}
	level.SetLevel(parseLevel(cfg.Level))

	var sinks []zapcore.WriteSyncer
	if cfg.Console {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	var f *os.File
	if cfg.ToFile {
		path := strings.TrimSpace(cfg.File)
		if path == "" {
			path = filepath.Join("logs", "arena.log")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("log dir: %w", err)
			}
		}
		var err error
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	core := zapcore.NewCore(enc(), zapcore.NewMultiWriteSyncer(sinks...), level)
	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller || format == "legacy" {
		opts = append(opts, zap.AddCaller())
	}
	Set(zap.New(core, opts...))

	mu.Lock()
	prev := logFile
	logFile = f
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

var encoders = map[string]func() zapcore.Encoder{
	"legacy": func() zapcore.Encoder {
		c := zap.NewProductionEncoderConfig()
		c.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		c.EncodeLevel = zapcore.CapitalLevelEncoder
		c.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(c)
	},
	"console": func() zapcore.Encoder {
		c := zap.NewProductionEncoderConfig()
		c.EncodeTime = zapcore.ISO8601TimeEncoder
		c.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(c)
	},
	"json": func() zapcore.Encoder {
		c := zap.NewProductionEncoderConfig()
		c.EncodeTime = zapcore.ISO8601TimeEncoder
		c.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(c)
	},
}

func parseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
