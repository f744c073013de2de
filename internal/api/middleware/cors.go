package middleware

import "net/http"

// Headers the browser-facing webhook contract promises on every response.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
)

// CORS sets the permissive CORS headers and a JSON content type on every response,
// including responses written by middleware further in.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Content-Type", "application/json")

		next.ServeHTTP(w, r)
	})
}
