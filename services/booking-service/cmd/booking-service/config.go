package main

import (
	"time"

	"github.com/md-rashed-zaman/fitbook/libs/config"
	"github.com/md-rashed-zaman/fitbook/libs/kafkax"
)

type serviceConfig struct {
	Service        string
	Port           string
	DatabaseURL    string
	DBMaxConns     int
	MigrateOnStart bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers    []string
	OutboxPollEvery time.Duration
	OutboxBatchSize int

	JWTSecret  string
	JWKSURL    string
	JWKSMaxAge time.Duration

	CORSOrigins       []string
	RateLimitPerMin   int
	RateLimitFailOpen bool
	RequestTimeout    time.Duration
	BodyLimitBytes    int
	SlotStep          time.Duration
	SSEHeartbeat      time.Duration
}

func loadConfig() (serviceConfig, error) {
	cfg := serviceConfig{
		Service:           config.String("SERVICE_NAME", "booking-service"),
		DBMaxConns:        config.Int("DB_MAX_CONNS", 10),
		MigrateOnStart:    config.Bool("MIGRATE_ON_START", false),
		RedisAddr:         config.String("REDIS_ADDR", ""),
		RedisPassword:     config.String("REDIS_PASSWORD", ""),
		RedisDB:           config.Int("REDIS_DB", 0),
		KafkaBrokers:      kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")),
		OutboxPollEvery:   config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:   config.Int("OUTBOX_BATCH_SIZE", 50),
		JWTSecret:         config.String("JWT_SECRET", ""),
		JWKSURL:           config.String("JWKS_URL", ""),
		JWKSMaxAge:        config.Duration("JWKS_CACHE_SECONDS", 5*time.Minute),
		CORSOrigins:       config.List("CORS_ALLOWED_ORIGINS", ""),
		RateLimitPerMin:   config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		RequestTimeout:    config.Duration("REQUEST_TIMEOUT", 15*time.Second),
		BodyLimitBytes:    config.Int("REQUEST_BODY_LIMIT_BYTES", 64<<10),
		SlotStep:          time.Duration(config.Int("SLOT_STEP_MINUTES", 15)) * time.Minute,
		SSEHeartbeat:      config.Duration("SSE_HEARTBEAT", 25*time.Second),
	}
	var err error
	if cfg.Port, err = config.Port("PORT", "8083"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return serviceConfig{}, err
	}
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return serviceConfig{}, errMissingAuth
	}
	return cfg, nil
}
