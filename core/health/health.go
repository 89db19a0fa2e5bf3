package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hubdeck/sessionkit/core/logger"
)

// checkTimeout bounds how long a readiness probe may hold the request.
const checkTimeout = 5 * time.Second

// Liveness indicates the process is running. Always "ALIVE" with 200 OK,
// no dependency checks.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ALIVE")
}

// NoContent returns HTTP 204 without a body. Suited to high-frequency
// checks where the body is never read.
func NoContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Readiness builds a readiness probe from dependency checks, typically
// the session backend. All checks pass: "READY" with 200 OK. Any check
// fails: 503 after logging which dependency broke.
func Readiness(log *slog.Logger, checks ...func(context.Context) error) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.Error("readiness check failed",
					logger.Event("health.not_ready"),
					logger.Error(err),
				)
				http.Error(w, "NOT READY", http.StatusServiceUnavailable)
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "READY")
	}
}

// Pinger is implemented by session backends that can report availability,
// such as the Redis and Postgres key-value adapters.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Check adapts a Pinger into a readiness dependency check.
func Check(p Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.Ping(ctx)
		return err
	}
}
