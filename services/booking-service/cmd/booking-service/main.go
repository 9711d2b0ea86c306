package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/auth"
	"github.com/md-rashed-zaman/fitbook/libs/config"
	"github.com/md-rashed-zaman/fitbook/libs/db"
	"github.com/md-rashed-zaman/fitbook/libs/httpx"
	"github.com/md-rashed-zaman/fitbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/fitbook/libs/otel"
	"github.com/md-rashed-zaman/fitbook/libs/runtime"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var errMissingAuth = errors.New("JWT_SECRET or JWKS_URL is required")

const streamPath = "/api/v1/notifications/stream"

func main() {
	if err := config.LoadDotEnv(os.Getenv("DOTENV_PATH")); err != nil {
		panic(err)
	}
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = nil
	}

	if cfg.MigrateOnStart {
		version, err := db.Migrate(cfg.DatabaseURL, migrations.FS, ".")
		if err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied", "version", version)
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if len(cfg.KafkaBrokers) > 0 {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}

	hub := notify.NewHub(32)
	var notifier booking.Notifier = hub
	var rateLimit httpx.Middleware
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})

		relay := notify.NewRedisRelay(rdb, hub, logger)
		notifier = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("notification relay stopped", "err", err)
			}
		}()
		rateLimit = httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMin, time.Minute, "fitbook:rl").Middleware(logger, cfg.RateLimitFailOpen)
	} else {
		logger.Warn("REDIS_ADDR not set; notifications and rate limits are local to this replica")
		rateLimit = httpx.NewRateLimiter(cfg.RateLimitPerMin, time.Minute).Middleware()
	}

	outboxRepo := outbox.NewRepository()
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: cfg.OutboxBatchSize,
	})
	go publisher.Run(ctx)

	svc := booking.NewService(storage.NewStore(pool, outboxRepo), notifier, logger, booking.Options{SlotStep: cfg.SlotStep})
	bookingHandler := handlers.NewBookingHandler(svc, logger)

	verifier := auth.Verifier{Secret: cfg.JWTSecret}
	if cfg.JWKSURL != "" {
		verifier.JWKS = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSMaxAge)
	}
	authed := auth.RequireAuth(verifier)
	trainerOnly := func(h http.HandlerFunc) http.Handler {
		return authed(auth.RequireRole(auth.RoleTrainer)(h))
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/public/availability/check", bookingHandler.Check)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.Handle("/api/v1/public/bookings", auth.OptionalAuth(verifier)(http.HandlerFunc(bookingHandler.Create)))
	mux.Handle("/api/v1/bookings/cancel", authed(http.HandlerFunc(bookingHandler.Cancel)))
	mux.Handle("/api/v1/bookings", trainerOnly(bookingHandler.List))
	mux.Handle("/api/v1/schedule", trainerOnly(bookingHandler.Schedule))
	mux.Handle(streamPath, authed(notify.NewStreamHandler(hub, logger, cfg.SSEHeartbeat)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", httpx.RequestIDHeader},
			ExposedHeaders: []string{httpx.RequestIDHeader, "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		rateLimit,
		httpx.WithBodyLimit(int64(cfg.BodyLimitBytes)),
		httpx.WithTimeout(cfg.RequestTimeout, streamPath),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	runtime.Shutdown(logger, 10*time.Second,
		// Close the hub first so open event streams return and Shutdown does not wait on them.
		runtime.ShutdownStep{Name: "notifications", Fn: func(context.Context) error { hub.Close(); return nil }},
		runtime.ShutdownStep{Name: "http", Fn: srv.Shutdown},
		runtime.ShutdownStep{Name: "redis", Fn: func(context.Context) error {
			if rdb == nil {
				return nil
			}
			return rdb.Close()
		}},
		runtime.ShutdownStep{Name: "otel", Fn: otelShutdown},
	)
	logger.Info("http server stopped")
}
