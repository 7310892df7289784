// Package logging constructs the service-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// New creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler at info
// level. Otherwise, it returns a text handler at debug level for development.
func New(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}
