package main

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/infrastructure/cache"
	"storefront/internal/infrastructure/database"
	"storefront/internal/infrastructure/lock"
	"storefront/internal/infrastructure/logger"
	"storefront/internal/infrastructure/mq"
	"storefront/internal/job"
	"storefront/internal/reconcile"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"
	"storefront/internal/service"
	"storefront/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app 进程级依赖，按配置装配
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	store    repository.Store
	redis    *redis.Client
	producer *mq.Producer
	closers  []func() error
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	lgr, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if err := idgen.Init(cfg.Server.NodeID); err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: lgr}, nil
}

func (a *app) openStore() error {
	if a.cfg.Database.Driver == "memory" {
		a.log.Warn("using in-memory store, data is lost on restart")
		a.store = memory.New()
		return nil
	}

	db, err := database.Open(&a.cfg.Database, a.log.Named("gorm"))
	if err != nil {
		return err
	}
	a.db = db
	a.store = repository.NewGormStore(db)
	a.closers = append(a.closers, func() error { return database.Close(db) })
	return nil
}

func (a *app) openRedis() error {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	rdb, err := cache.NewRedis(&a.cfg.Redis)
	if err != nil {
		return err
	}
	a.redis = rdb
	a.closers = append(a.closers, rdb.Close)
	return nil
}

func (a *app) openProducer() error {
	if !a.cfg.Kafka.Enabled {
		return nil
	}
	p, err := mq.NewProducer(&a.cfg.Kafka)
	if err != nil {
		return err
	}
	a.producer = p
	a.closers = append(a.closers, p.Close)
	return nil
}

func (a *app) relay() *job.OutboxRelay {
	b := a.cfg.Business
	return job.NewOutboxRelay(a.store, a.producer, b.RelayInterval, b.RelayBatchSize, b.MaxRetryCount, a.log)
}

// reconciler Redis 可用时用分布式锁和已处理标记，否则退化为进程内锁
func (a *app) reconciler() (*service.ReconcileService, error) {
	if a.cfg.Gateway.ServerKey == "" {
		return nil, errors.New("gateway.server_key 未配置")
	}
	loc, err := time.LoadLocation(a.cfg.Gateway.Timezone)
	if err != nil {
		return nil, fmt.Errorf("gateway.timezone: %w", err)
	}

	opts := []service.ReconcileOption{
		service.WithLogger(a.log.Named("reconcile")),
		service.WithTopics(a.cfg.Kafka.Topic),
		service.WithDecoder(gateway.NewDecoder(loc)),
		service.WithPolicy(reconcile.Policy{OverCreditTolerance: a.cfg.Business.Tolerance()}),
	}

	var locker service.Locker = lock.NewLocalLocker()
	if a.redis != nil {
		b := a.cfg.Business
		locker = lock.NewRedisLocker(a.redis, b.LockTTL, b.LockRetryInterval, b.LockMaxRetries)
		opts = append(opts, service.WithProcessedCache(cache.NewProcessedMarker(a.redis, a.cfg.Redis.MarkerTTL)))
	}

	auth := gateway.NewAuthenticator(a.cfg.Gateway.ServerKey)
	return service.NewReconcileService(a.store, auth, locker, opts...), nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
