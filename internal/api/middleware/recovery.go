package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/agendopro/webhook/internal/api/response"
)

// Recovery turns a handler panic into a logged problem+json 500.
func Recovery(next http.Handler) http.Handler {
	return recoverWith(next, func(w http.ResponseWriter) {
		response.RespondInternalServerError(w, "An unexpected error occurred")
	})
}

// WebhookRecovery is Recovery for the webhook route: the 500 uses the webhook error shape,
// and headers already set by earlier middleware (CORS) are kept.
func WebhookRecovery(next http.Handler) http.Handler {
	return recoverWith(next, func(w http.ResponseWriter) {
		response.RespondWebhookError(w, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred")
	})
}

func recoverWith(next http.Handler, respond func(w http.ResponseWriter)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			slog.ErrorContext(r.Context(), "panic recovered",
				"error", rec,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			respond(w)
		}()

		next.ServeHTTP(w, r)
	})
}
