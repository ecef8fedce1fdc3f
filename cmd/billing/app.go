package main

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-billing-service/config"
	"github.com/fekuna/omnipos-billing-service/internal/clock"
	"github.com/fekuna/omnipos-billing-service/internal/code"
	codeRepoPkg "github.com/fekuna/omnipos-billing-service/internal/code/repository"
	codeUCPkg "github.com/fekuna/omnipos-billing-service/internal/code/usecase"
	"github.com/fekuna/omnipos-billing-service/internal/inventory"
	invRepoPkg "github.com/fekuna/omnipos-billing-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-billing-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-billing-service/internal/invoice"
	invoiceRepoPkg "github.com/fekuna/omnipos-billing-service/internal/invoice/repository"
	invoiceUCPkg "github.com/fekuna/omnipos-billing-service/internal/invoice/usecase"
	"github.com/fekuna/omnipos-billing-service/internal/product"
	prodRepoPkg "github.com/fekuna/omnipos-billing-service/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-billing-service/internal/product/usecase"
	"github.com/fekuna/omnipos-billing-service/internal/reservation"
	resRepoPkg "github.com/fekuna/omnipos-billing-service/internal/reservation/repository"
	resUCPkg "github.com/fekuna/omnipos-billing-service/internal/reservation/usecase"
	"github.com/fekuna/omnipos-billing-service/pkg/broker"
	"github.com/fekuna/omnipos-billing-service/pkg/cache"
	"github.com/fekuna/omnipos-billing-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-billing-service/pkg/logger"
	"github.com/fekuna/omnipos-billing-service/pkg/search"
	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// app holds the shared infrastructure and use cases every command needs.
type app struct {
	cfg    *config.Config
	logger logger.ZapLogger

	db       *sqlx.DB
	redis    *cache.RedisClient
	producer *broker.KafkaProducer
	es       *search.Client

	codes        code.UseCase
	inventory    inventory.UseCase
	reservations reservation.UseCase
	products     product.UseCase
	invoices     invoice.UseCase
}

type appOptions struct {
	// events enables the Kafka producer and Elasticsearch indexing.
	events bool
}

func newLogger(cfg *config.Config) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}
	return logger.NewZapLogger(logConfig)
}

func openDB(cfg *config.Config) (*sqlx.DB, error) {
	return postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
}

func newApp(ctx context.Context, cfg *config.Config, log logger.ZapLogger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: log}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	log.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// Codes fall back to scanning and reservations run without the lock.
			log.Warn("Could not connect to Redis", zap.Error(err))
		} else {
			a.redis = redisClient
			log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	if opts.events {
		a.producer = broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.InvoiceTopic,
		})

		esClient, err := search.NewClient(&search.Config{
			Addresses: cfg.Elastic.Addresses,
			Username:  cfg.Elastic.Username,
			Password:  cfg.Elastic.Password,
		})
		if err != nil {
			log.Warn("Could not connect to Elasticsearch, indexing disabled", zap.Error(err))
		} else {
			a.es = esClient
			a.ensureIndices(ctx)
			log.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
		}
	}

	a.wire()
	return a, nil
}

func (a *app) ensureIndices(ctx context.Context) {
	indices := map[string]string{
		invoiceUCPkg.IndexName: invoiceUCPkg.IndexMapping,
		prodUCPkg.IndexName:    prodUCPkg.IndexMapping,
	}
	for name, mapping := range indices {
		if err := a.es.CreateIndex(ctx, name, mapping); err != nil {
			a.logger.Warn("Could not create search index", zap.String("index", name), zap.Error(err))
		}
	}
}

func (a *app) wire() {
	clk := clock.NewSystem()

	var counter code.Counter
	var resOpts []resUCPkg.Option
	if a.redis != nil {
		counter = codeRepoPkg.NewRedisCounter(a.redis.Client)
		resOpts = append(resOpts, resUCPkg.WithLocker(a.redis))
	}
	resOpts = append(resOpts,
		resUCPkg.WithTTL(time.Duration(a.cfg.Billing.ReservationTTL)*time.Second),
		resUCPkg.WithClock(clk),
	)

	a.codes = codeUCPkg.NewCodeUseCase(codeRepoPkg.NewPGRepository(a.db), counter, a.logger)
	a.inventory = invUCPkg.NewInventoryUseCase(invRepoPkg.NewPGRepository(a.db), clk, a.logger)
	a.reservations = resUCPkg.NewReservationUseCase(resRepoPkg.NewPGRepository(a.db), a.inventory, a.logger, resOpts...)

	// A nil *search.Client must not reach the Indexer interfaces.
	var productIndex product.Indexer
	invoiceOpts := []invoiceUCPkg.Option{invoiceUCPkg.WithClock(clk)}
	if a.es != nil {
		productIndex = a.es
		invoiceOpts = append(invoiceOpts, invoiceUCPkg.WithIndexer(a.es))
	}
	if a.producer != nil {
		invoiceOpts = append(invoiceOpts, invoiceUCPkg.WithPublisher(a.producer))
	}

	a.products = prodUCPkg.NewProductUseCase(prodRepoPkg.NewPGRepository(a.db), a.codes, a.inventory,
		a.redis, productIndex, clk, a.logger)
	a.invoices = invoiceUCPkg.NewInvoiceUseCase(invoiceRepoPkg.NewPGRepository(a.db), a.reservations,
		a.inventory, a.codes, invoiceUCPkg.SaleConfig{
			SupplierState:      a.cfg.Billing.SupplierState,
			Currency:           a.cfg.Billing.Currency,
			OversellFallback:   a.cfg.Billing.OversellFallback,
			AllowNegativeStock: a.cfg.Billing.AllowNegativeStock,
		}, a.logger, invoiceOpts...)
}

func (a *app) Close() error {
	var err error
	if a.producer != nil {
		err = multierr.Append(err, a.producer.Close())
	}
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}
