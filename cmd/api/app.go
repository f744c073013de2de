package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/agendopro/webhook/internal/api/handlers"
	"github.com/agendopro/webhook/internal/api/middleware"
	"github.com/agendopro/webhook/internal/api/response"
	"github.com/agendopro/webhook/internal/config"
	"github.com/agendopro/webhook/internal/connector/agendopro"
	"github.com/agendopro/webhook/internal/models"
	"github.com/agendopro/webhook/internal/observability"
	"github.com/agendopro/webhook/internal/repository"
	"github.com/agendopro/webhook/internal/service"
	"github.com/agendopro/webhook/internal/workers"
	"github.com/agendopro/webhook/pkg/cache"
	"github.com/agendopro/webhook/pkg/supabase"
)

const (
	webhookPath             = "/webhooks/agendopro"
	riverQueueDepthInterval = 15 * time.Second
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx] // nil unless log retention is enabled
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// stores are the persistence collaborators for the selected backend.
type stores struct {
	accounts     agendopro.AccountDirectory
	appointments agendopro.AppointmentStore
	logs         agendopro.WebhookLogStore
	logReader    service.WebhookLogsRepository
	// logPurger is only set for the postgres backend.
	logPurger *repository.WebhookLogsRepository
}

// newStores builds the privileged store client once. db must be non-nil for the postgres backend.
func newStores(cfg *config.Config, db *pgxpool.Pool) (*stores, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		if db == nil {
			return nil, errors.New("postgres backend requires a database pool")
		}

		logs := repository.NewWebhookLogsRepository(db)

		return &stores{
			accounts:     repository.NewAccountsRepository(db),
			appointments: repository.NewAppointmentsRepository(db),
			logs:         logs,
			logReader:    logs,
			logPurger:    logs,
		}, nil
	case config.StoreBackendSupabase:
		client, err := supabase.NewClient(supabase.ClientOptions{
			BaseURL:        cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			RetryMax:       cfg.SupabaseRetryMax,
			Timeout:        cfg.SupabaseTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create supabase client: %w", err)
		}

		logs := repository.NewSupabaseWebhookLogsRepository(client)

		return &stores{
			accounts:     repository.NewSupabaseAccountsRepository(client),
			appointments: repository.NewSupabaseAppointmentsRepository(client),
			logs:         logs,
			logReader:    logs,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

// setupMetrics creates the meter provider and metric collectors when metrics are enabled.
// The returned handler is non-nil only for the prometheus exporter.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, *observability.Metrics, http.Handler, error) {
	mp, promHandler, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		slog.Warn("metrics disabled: unsupported OTEL_METRICS_EXPORTER", "exporter", cfg.OtelMetricsExporter)

		return nil, nil, nil, nil
	}

	metrics, err := observability.NewMetrics(mp.Meter(observability.ServiceName))
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
			slog.Error("shutdown meter provider after metrics error", "error", err2)
		}

		return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
	}

	return mp, metrics, promHandler, nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure. db is nil for the supabase backend.
func NewApp(cfg *config.Config, db *pgxpool.Pool) (app *App, err error) {
	var (
		meterProvider  *sdkmetric.MeterProvider
		tracerProvider *sdktrace.TracerProvider
		metrics        *observability.Metrics
		promHandler    http.Handler
	)

	// Release whatever was created if wiring fails part way.
	defer func() {
		if err != nil {
			if err2 := shutdownObservability(context.Background(), tracerProvider, meterProvider); err2 != nil {
				slog.Error("shutdown observability after init error", "error", err2)
			}
		}
	}()

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metrics, promHandler, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}
	}

	// Installed unconditionally so request_id (and trace_id/span_id when tracing is on) appear in logs.
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(slog.Default().Handler())))

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	var (
		ingestMetrics observability.IngestMetrics
		cacheMetrics  observability.CacheMetrics
		apiMetrics    observability.APIMetrics
		jobMetrics    observability.JobMetrics
	)
	if metrics != nil {
		ingestMetrics = metrics.Ingest
		cacheMetrics = metrics.Cache
		apiMetrics = metrics.API
		jobMetrics = metrics.Jobs
	}

	st, err := newStores(cfg, db)
	if err != nil {
		return nil, err
	}

	accounts, err := withAccountCache(cfg, st.accounts, cacheMetrics)
	if err != nil {
		return nil, err
	}

	normalizer := agendopro.NewNormalizer(accounts, st.appointments, st.logs, agendopro.WithMetrics(ingestMetrics))

	var riverClient *river.Client[pgx.Tx]

	if cfg.RetentionEnabled() {
		riverClient, err = newRiverClient(cfg, db, st.logPurger, jobMetrics)
		if err != nil {
			return nil, err
		}

		slog.Info("webhook log retention enabled",
			"retention_days", cfg.WebhookLogRetentionDays,
			"interval", cfg.WebhookLogRetentionInterval,
		)
	}

	r := routes{
		health:  handlers.NewHealthHandler(),
		webhook: handlers.NewWebhookHandler(normalizer),
		metrics: promHandler,
	}

	if cfg.APIKey != "" {
		r.webhookLogs = handlers.NewWebhookLogsHandler(service.NewWebhookLogsService(st.logReader))
	} else {
		slog.Warn("admin API not mounted (API_KEY empty or unset)")
	}

	server, err := newHTTPServer(cfg, r, apiMetrics, meterProvider, tracerProvider)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

// withAccountCache wraps the account directory in a loader cache when ACCOUNT_CACHE_SIZE > 0.
func withAccountCache(
	cfg *config.Config, inner agendopro.AccountDirectory, metrics observability.CacheMetrics,
) (agendopro.AccountDirectory, error) {
	if cfg.AccountCacheSize == 0 {
		return inner, nil
	}

	accountCache, err := cache.NewLoaderCache[string, *models.Account](
		cfg.AccountCacheSize, cfg.AccountCacheTTL, func(id string) string { return id },
	)
	if err != nil {
		return nil, fmt.Errorf("create account cache: %w", err)
	}

	return service.NewCachingAccountDirectory(inner, accountCache, metrics), nil
}

// newRiverClient registers the retention worker and its periodic job. River requires the postgres backend.
func newRiverClient(
	cfg *config.Config, db *pgxpool.Pool, purger *repository.WebhookLogsRepository, metrics observability.JobMetrics,
) (*river.Client[pgx.Tx], error) {
	if db == nil || purger == nil {
		return nil, errors.New("webhook log retention requires the postgres backend")
	}

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewWebhookLogRetentionWorker(purger, metrics))

	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverWorkers},
		},
		Workers:      riverWorkers,
		ErrorHandler: &workers.ErrorHandler{},
		PeriodicJobs: []*river.PeriodicJob{
			workers.NewWebhookLogRetentionPeriodicJob(cfg.WebhookLogRetentionInterval, cfg.WebhookLogRetentionDays),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// routes are the handlers mounted by newHTTPServer. webhookLogs and metrics are optional.
type routes struct {
	health      *handlers.HealthHandler
	webhook     *handlers.WebhookHandler
	webhookLogs *handlers.WebhookLogsHandler
	metrics     http.Handler
}

// webhookChain wraps the inbound webhook route: CORS -> RateLimit -> MaxBody -> VerifySignature.
// CORS is outermost so every rejection still carries the CORS headers.
func webhookChain(cfg *config.Config, apiMetrics observability.APIMetrics) (middleware.Middleware, error) {
	var (
		rateRecorder      middleware.RateLimitRecorder
		bodyRecorder      middleware.RequestBodyTooLargeRecorder
		signatureRecorder middleware.SignatureFailureRecorder
	)
	if apiMetrics != nil {
		rateRecorder, bodyRecorder, signatureRecorder = apiMetrics, apiMetrics, apiMetrics
	}

	verify, err := middleware.VerifySignature(cfg.WebhookSigningSecret, signatureRecorder)
	if err != nil {
		return nil, fmt.Errorf("configure webhook signature verification: %w", err)
	}

	if cfg.WebhookSigningSecret == "" {
		slog.Warn("webhook signatures not verified (WEBHOOK_SIGNING_SECRET empty or unset)")
	}

	tooLarge := func(w http.ResponseWriter) {
		response.RespondWebhookError(w, http.StatusRequestEntityTooLarge, "Payload too large", "")
	}

	return middleware.Chain(
		middleware.CORS,
		middleware.WebhookRecovery,
		middleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst, rateRecorder),
		middleware.MaxBody(cfg.MaxRequestBodyBytes, bodyRecorder, middleware.WithTooLargeResponder(tooLarge)),
		verify,
	), nil
}

// newMux mounts the public, webhook and admin routes.
func newMux(cfg *config.Config, r routes, apiMetrics observability.APIMetrics) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", r.health.Check)

	if r.metrics != nil {
		mux.Handle("GET /metrics", r.metrics)
	}

	chain, err := webhookChain(cfg, apiMetrics)
	if err != nil {
		return nil, err
	}

	mux.Handle(webhookPath, chain(http.HandlerFunc(r.webhook.Handle)))

	if r.webhookLogs != nil {
		protected := http.NewServeMux()
		protected.HandleFunc("GET /v1/webhook-logs", r.webhookLogs.List)
		mux.Handle("/v1/", middleware.Auth(cfg.APIKey)(protected))
	}

	return mux, nil
}

// newHTTPServer builds the HTTP server.
// Handler chain: RequestID -> otelhttp -> Logging -> Recovery -> mux so access logs get trace_id/span_id.
func newHTTPServer(
	cfg *config.Config,
	r routes,
	apiMetrics observability.APIMetrics,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) (*http.Server, error) {
	mux, err := newMux(cfg, r, apiMetrics)
	if err != nil {
		return nil, err
	}

	otelOpts := []otelhttp.Option{
		// Skip health checks and scrapes.
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/health" && req.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	inner := middleware.Logging(middleware.Recovery(mux))
	handler := otelhttp.NewHandler(inner, observability.ServiceName, otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readHeaderTimeout = 5 * time.Second
		readTimeout       = 15 * time.Second
		writeTimeout      = 15 * time.Second
		idleTimeout       = 60 * time.Second
	)

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}, nil
}

// Run starts the HTTP server and River (when configured), then blocks until ctx is cancelled
// or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.river != nil {
		if a.metrics != nil && a.metrics.Jobs != nil {
			go runRiverQueueDepthPoller(riverCtx, a.db, a.metrics.Jobs)
		}

		go func() {
			if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case runErr <- fmt.Errorf("river: %w", err):
				default:
				}
			}
		}()
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port, "store_backend", a.cfg.StoreBackend)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// runRiverQueueDepthPoller periodically updates the River default-queue depth gauge.
func runRiverQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, jobMetrics observability.JobMetrics) {
	ticker := time.NewTicker(riverQueueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int64

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			river.QueueDefault,
			string(rivertype.JobStateAvailable), string(rivertype.JobStateRetryable), string(rivertype.JobStateScheduled),
		).Scan(&count)
		if err != nil {
			slog.WarnContext(ctx, "river queue depth poll failed", "error", err)

			return
		}

		jobMetrics.SetRiverQueueDepth(count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if tracer != nil {
		if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
			first = err
		}
	}

	if meter != nil {
		if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
			if first == nil {
				first = err
			} else {
				slog.Error("shutdown meter provider", "error", err)
			}
		}
	}

	return first
}

// Shutdown stops the server, then River, then observability. Call after Run returns.
// The observability error is returned only when server and River shut down successfully.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if a.river != nil {
			if stopErr := a.river.Stop(ctx); stopErr != nil {
				slog.Error("river stop during server shutdown", "error", stopErr)
			}
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.river != nil {
		if err = a.river.Stop(ctx); err != nil {
			return fmt.Errorf("river stop: %w", err)
		}
	}

	return nil
}
