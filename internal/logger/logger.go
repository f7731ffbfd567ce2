package logger

import (
	"log/slog"
	"os"

	slogotel "github.com/remychantenay/slog-otel"
)

// Level of every logger derived from Logger, debug until config is loaded
var LogLevel = new(slog.LevelVar)

// JSON on stderr, with the trace and span ids of the active span attached
var Handler = slogotel.NewOtelHandler(slogotel.WithNoTraceEvents(true))(
	slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true, Level: LogLevel}),
)

var Logger = slog.New(Handler)

func InitSlog() {
	LogLevel.Set(slog.LevelDebug)
	slog.SetDefault(Logger)
}

func SetLevel(level int) {
	LogLevel.Set(slog.Level(level))
	Logger.Debug("log level changed", "level", LogLevel.Level().String())
}

// Logger tagged with the subsystem it belongs to
func Component(name string) *slog.Logger {
	return Logger.With("component", name)
}
