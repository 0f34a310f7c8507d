// Package app assembles the services from configuration. Postgres, Redis and
// Kafka are optional; without DATABASE_URL every store runs in memory.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"

	accountstore "rolesync/internal/accounts/store"
	"rolesync/internal/bootstrap"
	"rolesync/internal/platform/config"
	platformkafka "rolesync/internal/platform/kafka"
	"rolesync/internal/platform/postgres"
	platformredis "rolesync/internal/platform/redis"
	"rolesync/internal/platform/throttle"
	"rolesync/internal/propertysync"
	"rolesync/internal/propertysync/ports"
	resourcesmemory "rolesync/internal/propertysync/ports/memory"
	resourcespostgres "rolesync/internal/propertysync/ports/postgres"
	"rolesync/internal/resolution"
	rolesmetrics "rolesync/internal/roles/metrics"
	rolesservice "rolesync/internal/roles/service"
	rolestore "rolesync/internal/roles/store"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/circuit"
	"rolesync/pkg/platform/notify"
	kafkasink "rolesync/pkg/platform/notify/sinks/kafka"
	"rolesync/pkg/platform/notify/sinks/redisstream"
	notifymemory "rolesync/pkg/platform/notify/store/memory"
	notifypostgres "rolesync/pkg/platform/notify/store/postgres"
)

const notifyBufferSize = 1024

// AlertStore keeps durable notifications and serves them back per account.
type AlertStore interface {
	notify.DurableStore
	ListOpenAlerts(ctx context.Context, accountID id.AccountID) ([]notify.Event, error)
	Acknowledge(ctx context.Context, eventID string) error
}

type resources interface {
	ports.AccessChecker
	ports.DocumentLookup
	ports.ContractLookup
	ports.BudgetLookup
	bootstrap.DefaultsProvisioner
}

// App holds the wired services and the connections they depend on.
type App struct {
	Roles        *rolesservice.Service
	Bootstrapper *bootstrap.Service
	Resolver     *resolution.Service
	Syncer       *propertysync.Service
	Publisher    *notify.Publisher
	Alerts       AlertStore

	logger  *slog.Logger
	db      *sql.DB
	pool    *pgxpool.Pool
	redis   *platformredis.Client
	kafka   *kgo.Client
}

// New connects the configured backends and builds every service. On error
// whatever was opened is closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (_ *App, err error) {
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.closeConnections()
		}
	}()

	var (
		roleStore rolesservice.RoleStore
		directory accountstore.Directory
		res       resources
	)
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		roleStore = rolestore.NewInMemory()
		directory = accountstore.NewInMemory()
		res = resourcesmemory.NewResources()
		a.Alerts = notifymemory.NewInMemoryStore()
	} else {
		a.db, err = postgres.Open(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.pool, err = postgres.OpenPool(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		roleStore = rolestore.NewPostgres(a.db)
		directory = accountstore.NewPostgres(a.db)
		res = resourcespostgres.New(a.pool)
		a.Alerts = notifypostgres.New(a.db)
	}
	if cfg.Accounts.CacheSize > 0 {
		directory = accountstore.NewCached(directory, cfg.Accounts.CacheSize, cfg.Accounts.CacheTTL)
	}

	sink, err := a.sinks(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Publisher = notify.NewPublisher(sink,
		notify.WithAsyncBuffer(notifyBufferSize),
		notify.WithDurableStore(a.Alerts),
		notify.WithBreaker(circuit.New("notify-sink")),
		notify.WithLogger(logger),
		notify.WithMetrics(notify.NewMetrics(reg)),
	)

	throttler := throttle.New(
		throttle.WithMaxConcurrent(cfg.Throttle.MaxConcurrent),
		throttle.WithQueueTimeout(cfg.Throttle.QueueTimeout),
		throttle.WithRateLimit(cfg.Throttle.RatePerSecond, cfg.Throttle.MaxConcurrent),
		throttle.WithLogger(logger),
		throttle.WithMetrics(throttle.NewMetrics(reg)),
	)

	a.Roles = rolesservice.New(roleStore, throttler,
		rolesservice.WithLogger(logger),
		rolesservice.WithMetrics(rolesmetrics.New(reg)),
		rolesservice.WithNotifier(a.Publisher),
		rolesservice.WithConfig(rolesservice.Config{
			MaxAttempts:  cfg.Roles.MaxAttempts,
			BaseBackoff:  cfg.Roles.Backoff,
			ReadTimeout:  cfg.Roles.ReadTimeout,
			WriteTimeout: cfg.Roles.WriteTimeout,
			BulkTimeout:  cfg.Roles.BulkTimeout,
			TokenTTL:     cfg.Roles.TokenTTL,
		}),
	)

	a.Bootstrapper = bootstrap.New(a.Roles,
		bootstrap.WithLogger(logger),
		bootstrap.WithMetrics(bootstrap.NewMetrics(reg)),
		bootstrap.WithExpectedRoleRecorder(directory),
		bootstrap.WithDefaultsProvisioner(res),
	)

	resolutionCfg := resolution.DefaultConfig()
	resolutionCfg.RecencyWindow = cfg.Resolution.RecencyWindow
	a.Resolver = resolution.New(a.Roles, directory,
		resolution.WithLogger(logger),
		resolution.WithMetrics(resolution.NewMetrics(reg)),
		resolution.WithNotifier(a.Publisher),
		resolution.WithRoleCompleter(a.Bootstrapper),
		resolution.WithConfig(resolutionCfg),
	)

	syncCfg := propertysync.DefaultConfig()
	syncCfg.HistoryLimit = cfg.Sync.HistoryLimit
	a.Syncer = propertysync.New(a.Roles, res,
		propertysync.WithDocumentLookup(res),
		propertysync.WithContractLookup(res),
		propertysync.WithBudgetLookup(res),
		propertysync.WithLogger(logger),
		propertysync.WithMetrics(propertysync.NewMetrics(reg)),
		propertysync.WithConfig(syncCfg),
	)

	return a, nil
}

func (a *App) sinks(ctx context.Context, cfg config.Config) (notify.Sink, error) {
	var sinks notify.MultiSink

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.redis = rc
		sinks = append(sinks, redisstream.New(rc, redisstream.WithStream(cfg.Redis.Stream)))
		a.logger.Info("redis notification sink enabled", "stream", cfg.Redis.Stream)
	}

	kc, err := platformkafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if kc != nil {
		a.kafka = kc
		if err := platformkafka.EnsureTopic(ctx, kc, cfg.Kafka.NotifyTopic, cfg.Kafka.Partitions); err != nil {
			return nil, err
		}
		sinks = append(sinks, kafkasink.New(kc, cfg.Kafka.NotifyTopic))
		a.logger.Info("kafka notification sink enabled", "topic", cfg.Kafka.NotifyTopic)
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return sinks, nil
}

// Close waits for background role completion, drains the publisher and
// releases the connections.
func (a *App) Close() {
	if a.Resolver != nil {
		a.Resolver.Wait()
	}
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	a.closeConnections()
}

func (a *App) closeConnections() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close postgres", "error", err)
		}
	}
}
