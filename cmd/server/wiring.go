package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"registrar/internal/audit"
	"registrar/internal/catalog"
	"registrar/internal/catalog/source"
	"registrar/internal/platform/config"
	"registrar/internal/platform/database"
	"registrar/internal/platform/health"
	"registrar/internal/platform/kafka"
	"registrar/internal/platform/kafka/producer"
	redisclient "registrar/internal/platform/redis"
	"registrar/internal/ratelimit"
	ratelimitmetrics "registrar/internal/ratelimit/metrics"
	ratelimitmw "registrar/internal/ratelimit/middleware"
	ratelimitstore "registrar/internal/ratelimit/store"
	"registrar/internal/registration/events"
	"registrar/internal/registration/store/ledger"
	"registrar/migrations"
	"registrar/pkg/platform/circuit"
)

// Topic layout for registration events, keyed by course.
const (
	eventPartitions  = 3
	eventReplication = 1
)

// infra holds optional backing services. Any of them may be nil when unconfigured.
type infra struct {
	db          *database.Pool
	redis       *redisclient.Client
	producer    *producer.Producer
	kafkaHealth *kafka.HealthChecker
	redisPool   *redisclient.PoolMetrics
}

func connectInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	in.db = db
	if db != nil && cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL, migrations.FS, log); err != nil {
			in.Close(log)
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	rc, err := redisclient.New(cfg.Redis)
	if err != nil {
		in.Close(log)
		return nil, fmt.Errorf("redis: %w", err)
	}
	in.redis = rc
	if rc != nil {
		in.redisPool = redisclient.NewPoolMetrics()
	}

	if cfg.Kafka.Brokers != "" {
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, eventPartitions, eventReplication); err != nil {
			// Auto-creation on the producer still applies; events are best effort.
			log.Warn("could not ensure event topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		p, err := producer.New(cfg.Kafka, log)
		if err != nil {
			in.Close(log)
			return nil, fmt.Errorf("kafka: %w", err)
		}
		in.producer = p
		in.kafkaHealth = kafka.NewHealthChecker(cfg.Kafka.Brokers)
	}
	return in, nil
}

// RegisterChecks adds readiness checks for every configured backing service.
func (in *infra) RegisterChecks(h *health.Handler) {
	if in.db != nil {
		h.RegisterCheck("postgres", in.db.Health)
	}
	if in.redis != nil {
		h.RegisterCheck("redis", in.redis.Health)
	}
	if in.kafkaHealth != nil {
		h.RegisterCheck(in.kafkaHealth.Name(), in.kafkaHealth.Check)
	}
}

// RecordPoolStats exports Redis pool gauges until ctx is done.
func (in *infra) RecordPoolStats(ctx context.Context, every time.Duration) {
	if in.redis == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.redis.RecordPoolStats(in.redisPool)
		}
	}
}

// Flush drains buffered events before exit.
func (in *infra) Flush(ctx context.Context, log *slog.Logger) {
	if in.producer == nil {
		return
	}
	if err := in.producer.Flush(ctx); err != nil {
		log.Warn("event flush incomplete", "error", err, "pending", in.producer.Len())
	}
}

func (in *infra) Close(log *slog.Logger) {
	if in.producer != nil {
		if err := in.producer.Close(); err != nil {
			log.Warn("closing kafka producer", "error", err)
		}
	}
	if err := in.redis.Close(); err != nil {
		log.Warn("closing redis", "error", err)
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("closing postgres", "error", err)
		}
	}
}

func buildCatalogSource(cfg config.Server, in *infra) (catalog.Source, error) {
	switch cfg.Catalog.Source {
	case config.CatalogPostgres:
		if in.db == nil {
			return nil, fmt.Errorf("catalog source postgres requires DATABASE_URL")
		}
		return source.NewPostgres(in.db.DB()), nil
	default:
		return source.NewYAMLFile(cfg.Catalog.File), nil
	}
}

// buildLedger selects the backend and puts it behind a circuit breaker so a
// downed store answers "failed" quickly instead of burning the retry budget.
func buildLedger(cfg config.Server, in *infra, log *slog.Logger) (*ledger.Guarded, error) {
	var backend ledger.Ledger
	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		if in.db == nil {
			return nil, fmt.Errorf("ledger backend postgres requires DATABASE_URL")
		}
		backend = ledger.NewPostgres(in.db.DB())
	case config.LedgerRedis:
		if in.redis == nil {
			return nil, fmt.Errorf("ledger backend redis requires REDIS_URL")
		}
		backend = ledger.NewRedis(in.redis.Client)
	default:
		log.Warn("using in-memory ledger; registrations are lost on restart")
		backend = ledger.NewMemory()
	}

	breaker := circuit.New("ledger",
		circuit.WithFailureThreshold(cfg.Registration.BreakerFailures),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(cfg.Registration.BreakerCooldown),
	)
	return ledger.NewGuarded(backend, breaker, log), nil
}

// buildAuditLog keeps the admin trail in Postgres when a database is configured.
func buildAuditLog(in *infra, log *slog.Logger) *audit.Publisher {
	var store audit.Store = audit.NewMemoryStore(1000)
	if in.db != nil {
		store = audit.NewPostgresStore(in.db.DB())
	}
	return audit.NewPublisher(store, 256, audit.WithLogger(log))
}

// startAuditTrail runs the audit worker on its own context, detached from the
// shutdown signal, so admin requests still finishing inside srv.Shutdown keep
// their events. stop cancels the worker and waits for its drain, bounded by ctx.
func startAuditTrail(p *audit.Publisher, log *slog.Logger) (stop func(ctx context.Context)) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Worker().Run(runCtx)
	}()
	return func(ctx context.Context) {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			log.Warn("audit trail not fully flushed")
		}
	}
}

func buildPublisher(cfg config.Server, in *infra, log *slog.Logger) *events.Publisher {
	if in.producer == nil {
		return nil
	}
	return events.New(in.producer,
		events.WithTopic(cfg.Kafka.Topic),
		events.WithLogger(log),
	)
}

// buildSubmitLimiter returns the per-client submission throttle. The memory
// store is swept on the same cadence as its window so idle clients are dropped.
func buildSubmitLimiter(ctx context.Context, cfg config.Server, in *infra, log *slog.Logger) func(http.Handler) http.Handler {
	var store ratelimit.Store
	switch cfg.RateLimit.Backend {
	case config.RateLimitRedis:
		store = ratelimitstore.NewRedis(in.redis.Client)
	default:
		mem := ratelimitstore.NewMemory()
		store = mem
		if cfg.RateLimit.SubmitWindow > 0 {
			go func() {
				ticker := time.NewTicker(cfg.RateLimit.SubmitWindow)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						mem.Sweep()
					}
				}
			}()
		}
	}

	mw := ratelimitmw.New(store, log,
		ratelimitmw.WithMetrics(ratelimitmetrics.New()),
		ratelimitmw.WithDisabled(cfg.RateLimit.SubmitLimit <= 0),
	)
	return mw.Limit(ratelimit.Policy{
		Name:   "submit",
		Limit:  cfg.RateLimit.SubmitLimit,
		Window: cfg.RateLimit.SubmitWindow,
	})
}
