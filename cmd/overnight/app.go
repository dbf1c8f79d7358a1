// 文件: cmd/overnight/app.go
// 依赖装配: MySQL / Redis / Kafka / NATS 按需打开

package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"overnight.com/pkg/config"
	"overnight.com/pkg/kafka"
	"overnight.com/pkg/market"
	"overnight.com/pkg/nats"
	"overnight.com/pkg/refprice"
	"overnight.com/pkg/series"
)

type app struct {
	cfg    *config.Config
	log    *zap.Logger
	dryRun bool

	db  *gorm.DB
	rds *redis.Client

	closers []func()
}

func newApp(cfg *config.Config, logger *zap.Logger, dryRun bool) *app {
	return &app{cfg: cfg, log: logger, dryRun: dryRun}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// =============================================================================
// 存储
// =============================================================================

// stores 一次命令用到的仓库
type stores struct {
	repo      *market.MySQLRepository
	contracts market.ContractRepository
	prices    refprice.Store
	cache     *refprice.CachedStore // 没配 Redis 时为 nil
}

func (s *stores) invalidator() series.CacheInvalidator {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

func (a *app) openDB(ctx context.Context) (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := gorm.Open(mysql.Open(a.cfg.DB.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(a.cfg.DB.MaxOpenConns)
	sqldb.SetMaxIdleConns(a.cfg.DB.MaxIdleConns)
	sqldb.SetConnMaxLifetime(a.cfg.DB.ConnMaxLifetime)
	a.closers = append(a.closers, func() { sqldb.Close() })

	if err := sqldb.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if !a.dryRun {
		if err := series.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	a.db = db
	return db, nil
}

// redisClient 没配地址或连不上时返回 nil，不走缓存
func (a *app) redisClient(ctx context.Context) *redis.Client {
	if a.rds != nil || a.cfg.Redis.Addr == "" {
		return a.rds
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.log.Warn("redis unavailable, cache disabled", zap.String("addr", a.cfg.Redis.Addr), zap.Error(err))
		rdb.Close()
		return nil
	}
	a.closers = append(a.closers, func() { rdb.Close() })
	a.rds = rdb
	return rdb
}

func (a *app) stores(ctx context.Context) (*stores, error) {
	db, err := a.openDB(ctx)
	if err != nil {
		return nil, err
	}
	repo := market.NewMySQLRepository(db)
	s := &stores{
		repo:      repo,
		contracts: repo,
		prices:    refprice.NewMySQLStore(db),
	}
	if rdb := a.redisClient(ctx); rdb != nil {
		s.contracts = market.NewCachedContractRepository(repo, rdb, a.cfg.Redis.TTL)
		s.cache = refprice.NewCachedStore(s.prices, rdb, a.cfg.Redis.TTL)
		s.prices = s.cache
	}
	return s, nil
}

// =============================================================================
// 消息
// =============================================================================

// kafkaSink 没配 broker 返回 nil
func (a *app) kafkaSink() (series.Sink, error) {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	pcfg := kafka.DefaultProducerConfig(a.cfg.Kafka.Brokers)
	pcfg.Compression = a.cfg.Kafka.Compression
	producer, err := kafka.NewProducer(pcfg, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { producer.Close() })
	return series.NewKafkaSink(producer, a.cfg.Kafka.Topic), nil
}

// notifier 没配 NATS 返回 nil
func (a *app) notifier() (series.Notifier, error) {
	if a.cfg.NATS.URL == "" {
		return nil, nil
	}
	pub, err := nats.NewPublisher(a.cfg.NATS.URL, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		pub.Flush()
		pub.Close()
	})
	return series.NewNatsNotifier(pub, a.log), nil
}

func (a *app) builder(s *stores, metrics *series.Metrics, publish bool) (*series.Builder, error) {
	var writer series.UnitWriter
	if !a.dryRun {
		writer = series.NewGormUnitWriter(a.db, s.invalidator())
	}
	b := series.NewBuilder(s.contracts, s.repo, s.repo, writer, a.log).WithMetrics(metrics)
	if !publish {
		return b, nil
	}
	n, err := a.notifier()
	if err != nil {
		return nil, err
	}
	if n != nil {
		b.WithNotifier(n)
	}
	return b, nil
}
