package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agendopro/webhook/internal/api/handlers"
	"github.com/agendopro/webhook/internal/apperrors"
	"github.com/agendopro/webhook/internal/config"
	"github.com/agendopro/webhook/internal/connector/agendopro"
	"github.com/agendopro/webhook/internal/models"
	"github.com/agendopro/webhook/internal/service"
)

// memoryBackend is an in-process stand-in for the postgres stores.
type memoryBackend struct {
	mu           sync.Mutex
	accounts     map[string]*models.Account
	appointments map[string]*models.Appointment
	logs         []models.WebhookLog
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		accounts:     map[string]*models.Account{},
		appointments: map[string]*models.Appointment{},
	}
}

func (m *memoryBackend) FindByProfessionalID(_ context.Context, professionalID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.accounts[professionalID]; ok {
		return a, nil
	}

	return nil, apperrors.NewNotFoundError("account", "")
}

func (m *memoryBackend) GetByExternalID(_ context.Context, externalID string) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.appointments[externalID]; ok {
		cp := *a

		return &cp, nil
	}

	return nil, apperrors.NewNotFoundError("appointment", "")
}

func (m *memoryBackend) Create(_ context.Context, req *models.UpsertAppointmentRequest) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[req.ExternalID]; ok {
		return nil, apperrors.NewConflictError("duplicate external_id")
	}

	externalID := req.ExternalID
	a := &models.Appointment{
		ID:              uuid.New(),
		AccountID:       req.AccountID,
		ExternalID:      &externalID,
		ClientName:      req.ClientName,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		Status:          req.Status,
		CreatedAt:       req.UpdatedAt,
		UpdatedAt:       req.UpdatedAt,
	}
	m.appointments[externalID] = a

	return a, nil
}

func (m *memoryBackend) UpdateByID(_ context.Context, id uuid.UUID, req *models.UpsertAppointmentRequest) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.appointments {
		if a.ID == id {
			a.ClientName = req.ClientName
			a.Status = req.Status
			a.UpdatedAt = req.UpdatedAt

			return a, nil
		}
	}

	return nil, apperrors.NewNotFoundError("appointment", "")
}

func (m *memoryBackend) SetStatusByExternalID(
	_ context.Context, externalID string, status models.AppointmentStatus, updatedAt time.Time,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[externalID]
	if !ok {
		return 0, nil
	}

	a.Status = status
	a.UpdatedAt = updatedAt

	return 1, nil
}

func (m *memoryBackend) Append(_ context.Context, req *models.CreateWebhookLogRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = append(m.logs, models.WebhookLog{
		ID:          uuid.New(),
		Provider:    req.Provider,
		EventType:   req.EventType,
		Payload:     req.Payload,
		ProcessedAt: req.ProcessedAt,
	})

	return nil
}

func (m *memoryBackend) List(_ context.Context, _ *models.ListWebhookLogsFilters) ([]models.WebhookLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.WebhookLog(nil), m.logs...), nil
}

func (m *memoryBackend) Count(_ context.Context, _ *models.ListWebhookLogsFilters) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.logs)), nil
}

func (m *memoryBackend) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.logs)
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		StoreBackend:        config.StoreBackendPostgres,
		APIKey:              "admin-key",
		WebhookRateBurst:    20,
		MaxRequestBodyBytes: 1 << 20,
	}
}

func newTestHandler(t *testing.T, cfg *config.Config, backend *memoryBackend, metrics http.Handler) http.Handler {
	t.Helper()

	normalizer := agendopro.NewNormalizer(backend, backend, backend)

	r := routes{
		health:  handlers.NewHealthHandler(),
		webhook: handlers.NewWebhookHandler(normalizer),
		metrics: metrics,
	}
	if cfg.APIKey != "" {
		r.webhookLogs = handlers.NewWebhookLogsHandler(service.NewWebhookLogsService(backend))
	}

	server, err := newHTTPServer(cfg, r, nil, nil, nil)
	require.NoError(t, err)

	return server.Handler
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestWebhookRoute_EndToEnd(t *testing.T) {
	backend := newMemoryBackend()
	backend.accounts["prof-1"] = &models.Account{ID: uuid.New(), Name: "Clinic"}
	h := newTestHandler(t, testConfig(), backend, nil)

	created := `{"event":"appointment.created","data":{"id":"ext-1","client_name":"Ana","appointment_date":"2024-01-10","appointment_time":"09:00","status":"confirmed","professional_id":"prof-1"}}`

	rec := do(h, http.MethodPost, webhookPath, created, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Event appointment.created processed successfully"}`, rec.Body.String())
	assertCORS(t, rec)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(h, http.MethodPost, webhookPath, `{"event":"appointment.cancelled","data":{"id":"ext-1"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	appt, err := backend.GetByExternalID(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCancelled, appt.Status)
	assert.Equal(t, 2, backend.logCount())
}

func TestWebhookRoute_Rejections(t *testing.T) {
	backend := newMemoryBackend()
	cfg := testConfig()
	cfg.MaxRequestBodyBytes = 64
	h := newTestHandler(t, cfg, backend, nil)

	t.Run("preflight", func(t *testing.T) {
		rec := do(h, http.MethodOptions, webhookPath, "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assertCORS(t, rec)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(h, http.MethodGet, webhookPath, "", nil)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
		assertCORS(t, rec)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := do(h, http.MethodPost, webhookPath, `{"event":`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid payload structure"}`, rec.Body.String())
		assertCORS(t, rec)
	})

	t.Run("payload too large", func(t *testing.T) {
		body := `{"event":"appointment.created","data":{"id":"ext-1","notes":"` + strings.Repeat("x", 128) + `"}}`
		rec := do(h, http.MethodPost, webhookPath, body, nil)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.JSONEq(t, `{"error":"Payload too large"}`, rec.Body.String())
		assertCORS(t, rec)
	})

	assert.Zero(t, backend.logCount(), "rejected requests must not be audited")
}

func TestWebhookRoute_SignatureRequired(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookSigningSecret = "whsec_MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	backend := newMemoryBackend()
	h := newTestHandler(t, cfg, backend, nil)

	rec := do(h, http.MethodPost, webhookPath, `{"event":"appointment.created","data":{"id":"ext-1"}}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
	assertCORS(t, rec)
	assert.Zero(t, backend.logCount())
}

func TestWebhookRoute_InvalidSigningSecret(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookSigningSecret = "whsec_%%%not-base64"

	_, err := newHTTPServer(cfg, routes{
		health:  handlers.NewHealthHandler(),
		webhook: handlers.NewWebhookHandler(agendopro.NewNormalizer(nil, nil, nil)),
	}, nil, nil, nil)
	require.Error(t, err)
}

func TestWebhookRoute_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookRateLimit = 0.5
	cfg.WebhookRateBurst = 1
	h := newTestHandler(t, cfg, newMemoryBackend(), nil)

	body := `{"event":"payment.received","data":{}}`

	first := do(h, http.MethodPost, webhookPath, body, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := do(h, http.MethodPost, webhookPath, body, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "2", second.Header().Get("Retry-After"))
	assertCORS(t, second)

	preflight := do(h, http.MethodOptions, webhookPath, "", nil)
	assert.Equal(t, http.StatusOK, preflight.Code)
	assert.Empty(t, preflight.Body.String())
	assertCORS(t, preflight)

	get := do(h, http.MethodGet, webhookPath, "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, get.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, get.Body.String())
}

func TestAdminRoutes(t *testing.T) {
	backend := newMemoryBackend()
	require.NoError(t, backend.Append(context.Background(), &models.CreateWebhookLogRequest{
		Provider: agendopro.Provider, EventType: "appointment.created",
		Payload: json.RawMessage(`{"event":"appointment.created"}`), ProcessedAt: time.Now().UTC(),
	}))

	h := newTestHandler(t, testConfig(), backend, nil)

	t.Run("requires api key", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/v1/webhook-logs", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = do(h, http.MethodGet, "/v1/webhook-logs", "", map[string]string{"Authorization": "Bearer wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lists audit rows", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/v1/webhook-logs?limit=10", "", map[string]string{"Authorization": "Bearer admin-key"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body models.ListWebhookLogsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, int64(1), body.Total)
		assert.Equal(t, 10, body.Limit)
		require.Len(t, body.Data, 1)
		assert.Equal(t, "appointment.created", body.Data[0].EventType)
	})

	t.Run("not mounted without api key", func(t *testing.T) {
		cfg := testConfig()
		cfg.APIKey = ""
		h := newTestHandler(t, cfg, backend, nil)

		rec := do(h, http.MethodGet, "/v1/webhook-logs", "", map[string]string{"Authorization": "Bearer "})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPublicRoutes(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		h := newTestHandler(t, testConfig(), newMemoryBackend(), nil)
		rec := do(h, http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("metrics only when exporter serves them", func(t *testing.T) {
		h := newTestHandler(t, testConfig(), newMemoryBackend(), nil)
		assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/metrics", "", nil).Code)

		scrape := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# HELP up\n"))
		})
		h = newTestHandler(t, testConfig(), newMemoryBackend(), scrape)

		rec := do(h, http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "# HELP")
	})
}

func TestNewStores(t *testing.T) {
	t.Run("postgres without pool", func(t *testing.T) {
		_, err := newStores(testConfig(), nil)
		require.Error(t, err)
	})

	t.Run("supabase", func(t *testing.T) {
		cfg := testConfig()
		cfg.StoreBackend = config.StoreBackendSupabase
		cfg.SupabaseURL = "https://project.supabase.co"
		cfg.SupabaseServiceRoleKey = "service-role"

		st, err := newStores(cfg, nil)
		require.NoError(t, err)
		assert.NotNil(t, st.accounts)
		assert.NotNil(t, st.appointments)
		assert.NotNil(t, st.logs)
		assert.NotNil(t, st.logReader)
		assert.Nil(t, st.logPurger)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.StoreBackend = "mongo"

		_, err := newStores(cfg, nil)
		require.Error(t, err)
	})
}

func TestWithAccountCache(t *testing.T) {
	backend := newMemoryBackend()

	cfg := testConfig()
	dir, err := withAccountCache(cfg, backend, nil)
	require.NoError(t, err)
	assert.Same(t, backend, dir)

	cfg.AccountCacheSize = 16
	cfg.AccountCacheTTL = time.Minute
	dir, err = withAccountCache(cfg, backend, nil)
	require.NoError(t, err)
	assert.NotSame(t, backend, dir)
}

func TestNewRiverClient_RequiresPostgres(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookLogRetentionDays = 30

	_, err := newRiverClient(cfg, nil, nil, nil)
	require.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	setupLogging(&buf, "warn", "json")

	slog.Info("hidden")
	slog.Warn("shown", "event_type", "appointment.created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "appointment.created", line["event_type"])
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}
