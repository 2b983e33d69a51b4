package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/api"
	"github.com/persistorai/auditlog/internal/config"
	"github.com/persistorai/auditlog/internal/db"
	"github.com/persistorai/auditlog/internal/db/migrations"
	"github.com/persistorai/auditlog/internal/dbpool"
	"github.com/persistorai/auditlog/internal/domain"
	"github.com/persistorai/auditlog/internal/memstore"
	"github.com/persistorai/auditlog/internal/middleware"
	"github.com/persistorai/auditlog/internal/mongostore"
	"github.com/persistorai/auditlog/internal/service"
	"github.com/persistorai/auditlog/internal/store"
)

// backend is an opened store plus what the rest of the process needs to know
// about it.
type backend struct {
	store domain.Store
	// notifies is true when inserts reach the hub through LISTEN/NOTIFY.
	notifies   bool
	schema     api.SchemaFunc
	wantSchema int64
}

func openBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger, hub db.Broadcaster) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return openPostgres(ctx, cfg, log, hub)
	case config.BackendMongo:
		st, err := mongostore.Connect(ctx, cfg.MongoURI.Value(), cfg.MongoDatabase, log)
		if err != nil {
			return nil, err
		}

		if err := st.EnsureIndexes(ctx); err != nil {
			_ = st.Close(context.Background())
			return nil, err
		}

		return &backend{store: st}, nil
	default:
		log.Warn("using in-memory store; data is lost on restart")
		return &backend{store: memstore.New()}, nil
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log *logrus.Logger, hub db.Broadcaster) (*backend, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		pool.Close()
		return nil, err
	}

	if err := db.NewNotifyBridge(log, pool, hub, store.NotifyChannel).Start(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("starting notify bridge: %w", err)
	}

	return &backend{
		store:    store.New(pool, log),
		notifies: true,
		schema: func(ctx context.Context) (int64, error) {
			return db.AppliedVersion(ctx, pool)
		},
		wantSchema: int64(db.SchemaVersion()),
	}, nil
}

// newNotifier mails alerts through SMTP when configured and logs them
// otherwise. Either way delivery sits behind a circuit breaker.
func newNotifier(cfg *config.Config, log *logrus.Logger) service.Notifier {
	var next service.Notifier = service.NewLogNotifier(log)

	if cfg.SMTPEnabled() {
		next = service.NewSMTPNotifier(service.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword.Value(),
			From:     cfg.AlertFrom,
		})
	}

	return service.NewBreakerNotifier(next, 0, 0, log)
}

// newTenantRateStore shares per-tenant windows through Redis when REDIS_URL is
// set so every replica enforces the same limit.
func newTenantRateStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (middleware.RateLimitStore, func(), error) {
	if cfg.RedisURL.Value() == "" {
		return middleware.NewMemoryRateLimitStore(ctx), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL.Value())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	log.Info("tenant rate limits shared through redis")

	return middleware.NewRedisRateLimitStore(client), func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Warn("closing redis client")
		}
	}, nil
}
