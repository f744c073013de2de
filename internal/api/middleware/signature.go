package middleware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"

	"github.com/agendopro/webhook/internal/api/response"
)

// Signature failure reasons (metric label values).
const (
	SignatureReasonMissingHeaders = "missing_headers"
	SignatureReasonInvalid        = "invalid"
	SignatureReasonReadFailed     = "read_failed"
)

// SignatureFailureRecorder records rejected signatures. Pass nil when metrics are disabled.
type SignatureFailureRecorder interface {
	RecordSignatureFailure(ctx context.Context, reason string)
}

// VerifySignature checks Standard Webhooks headers (webhook-id, webhook-timestamp,
// webhook-signature) on POST requests against secret. The body is buffered and handed
// on unchanged. An empty secret disables verification.
func VerifySignature(secret string, recorder SignatureFailureRecorder) (Middleware, error) {
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	wh, err := standardwebhooks.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signing secret: %w", err)
	}

	fail := func(w http.ResponseWriter, r *http.Request, reason string, err error) {
		if recorder != nil {
			recorder.RecordSignatureFailure(r.Context(), reason)
		}

		slog.WarnContext(r.Context(), "webhook signature rejected", "reason", reason, "error", err)
		response.RespondWebhookError(w, http.StatusUnauthorized, "Invalid signature", "")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)

				return
			}

			if r.Header.Get(standardwebhooks.HeaderWebhookID) == "" ||
				r.Header.Get(standardwebhooks.HeaderWebhookTimestamp) == "" ||
				r.Header.Get(standardwebhooks.HeaderWebhookSignature) == "" {
				fail(w, r, SignatureReasonMissingHeaders, nil)

				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					// MaxBody replaces this response with a 413.
					response.RespondWebhookError(w, http.StatusRequestEntityTooLarge, "Payload too large", "")

					return
				}

				fail(w, r, SignatureReasonReadFailed, err)

				return
			}

			if err := wh.Verify(body, r.Header); err != nil {
				fail(w, r, SignatureReasonInvalid, err)

				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}, nil
}
