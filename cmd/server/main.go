package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/broker"
	"inventory-service/internal/mongostore"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "inventory-service"

// backend is a storage implementation that can be released on shutdown
type backend interface {
	service.Storage
	Close() error
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if cfg.Postgres.RunMigrations {
			if err := store.Migrate(cfg.Postgres.URL); err != nil {
				return nil, err
			}
			logger.Info("Database migrations applied")
		}
		return store.NewStore(cfg.Postgres.URL)

	case config.DriverMongo:
		s, err := mongostore.NewStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	case config.DriverRedis:
		return redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service",
		zap.String("env", cfg.Server.Env),
		zap.String("storage_driver", cfg.Storage.Driver))

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	storage, err := openStorage(startCtx, cfg.Storage, logger)
	startCancel()
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer storage.Close()
	logger.Info("Storage connected", zap.String("driver", cfg.Storage.Driver))

	guard := service.NewStorageGuard(service.GuardConfig{
		Timeout:     cfg.Storage.Timeout,
		MaxFailures: cfg.Storage.Breaker.MaxFailures,
		OpenTimeout: cfg.Storage.Breaker.OpenTimeout,
	})
	ledger := service.NewLedger(storage, guard)
	catalog := service.NewCatalogService(storage, guard, ledger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var publisher service.EventPublisher
	var lowStockWorker *worker.LowStockWorker
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory)
		defer producer.Close()
		eventPublisher := broker.NewEventPublisher(producer)
		publisher = eventPublisher
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicInventory))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory, cfg.Kafka.ConsumerGroup)
		lowStockWorker = worker.NewLowStockWorker(consumer, ledger, eventPublisher)
		go func() {
			if err := lowStockWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Low stock worker error", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("No Kafka brokers configured, domain events disabled")
	}

	orders := service.NewOrderService(storage, guard, ledger, publisher)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orders, catalog, storage, []byte(cfg.Auth.JWTSecret))
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if lowStockWorker != nil {
		if err := lowStockWorker.Stop(); err != nil {
			logger.Error("Error stopping low stock worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
