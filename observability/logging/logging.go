package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions controls on-disk log rotation. A blank Path disables file output.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger. All log lines include the service name and
// environment when provided. When file options carry a path, lines are also
// written to a rotating file.
func Setup(service, env string, file FileOptions) *slog.Logger {
	return setup(os.Stdout, service, env, file)
}

func setup(stdout io.Writer, service, env string, file FileOptions) *slog.Logger {
	var out io.Writer = stdout
	if path := strings.TrimSpace(file.Path); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    defaultInt(file.MaxSizeMB, 100),
			MaxBackups: defaultInt(file.MaxBackups, 5),
			MaxAge:     defaultInt(file.MaxAgeDays, 28),
		}
		out = io.MultiWriter(stdout, rotator)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so packages using log still emit JSON.
	bridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
