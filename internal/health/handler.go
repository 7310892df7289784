// Package health provides health check implementations for external
// dependencies and an HTTP handler that aggregates them.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// checkTimeout bounds each dependency probe.
const checkTimeout = 5 * time.Second

// Handler returns an HTTP handler that probes each named checker and reports
// overall status. Responds 200 when all dependencies are healthy and 503
// otherwise, with a per-dependency breakdown in the body.
func Handler(logger *slog.Logger, checkers map[string]Checker) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		status := "ok"
		deps := make(map[string]string, len(checkers))
		for name, checker := range checkers {
			if err := checker.HealthCheck(ctx); err != nil {
				logger.Warn("health check failed", "dependency", name, "error", err)
				deps[name] = err.Error()
				status = "degraded"
			} else {
				deps[name] = "ok"
			}
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(map[string]any{
			"status":       status,
			"dependencies": deps,
		}); err != nil {
			logger.Warn("failed to encode health response", "error", err)
		}
	})
}
