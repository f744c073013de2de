package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondUnauthorized(rec, "Missing Authorization header")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Unauthorized", problem.Title)
	assert.Equal(t, http.StatusUnauthorized, problem.Status)
	assert.Equal(t, "Missing Authorization header", problem.Detail)
}

func TestRespondWebhookError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		msg    string
		detail string
		want   string
	}{
		{"error only", http.StatusMethodNotAllowed, "Method not allowed", "", `{"error":"Method not allowed"}`},
		{"with message", http.StatusInternalServerError, "Internal server error", "db down", `{"error":"Internal server error","message":"db down"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondWebhookError(rec, tt.status, tt.msg, tt.detail)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}
