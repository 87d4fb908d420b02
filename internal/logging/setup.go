package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects and tunes a logging backend.
type Options struct {
	Backend     string // "slog" (default) or "zap"
	Level       string // debug, info, warn, error
	File        string // optional log file, rotated by lumberjack
	ServiceName string
}

// New builds a Logger from opts. Output goes to stdout and, when File is set,
// additionally to a size-rotated log file. On a terminal the slog backend
// writes human-readable text instead of JSON.
func New(opts Options) (Logger, error) {
	var out io.Writer = os.Stdout
	tty := term.IsTerminal(int(os.Stdout.Fd()))

	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    128, // MB
			MaxAge:     30,  // days
			MaxBackups: 30,
		})
		tty = false
	}

	switch strings.ToLower(opts.Backend) {
	case "", "slog":
		return newSlog(out, opts, tty), nil
	case "zap":
		return newZap(out, opts), nil
	}
	return nil, fmt.Errorf("unknown log backend %q", opts.Backend)
}

func newSlog(out io.Writer, opts Options, tty bool) Logger {
	ho := &slog.HandlerOptions{Level: slogLevel(opts.Level)}

	var h slog.Handler
	if tty {
		h = slog.NewTextHandler(out, ho)
	} else {
		h = slog.NewJSONHandler(out, ho)
	}

	l := slog.New(h)
	if opts.ServiceName != "" {
		l = l.With("service_name", opts.ServiceName)
	}
	return NewSlogLogger(l)
}

func newZap(out io.Writer, opts Options) Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(out),
		zapLevel(opts.Level),
	)

	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if opts.ServiceName != "" {
		l = l.With(zap.String("service_name", opts.ServiceName))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		l = l.With(zap.String("hostname", hostname))
	}
	return NewZapLogger(l)
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
