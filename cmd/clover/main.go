package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/db/migrations"
	"github.com/Ramsey-B/clover/internal/repositories/chargingprofile"
	"github.com/Ramsey-B/clover/internal/repositories/evse"
	"github.com/Ramsey-B/clover/internal/repositories/tariff"
	"github.com/Ramsey-B/clover/internal/repositories/transaction"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/routes"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Enabled:     cfg.TracingEnabled,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
		},
	})
	if err != nil {
		return fmt.Errorf("create tracer provider: %w", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	a := &app{cfg: cfg, logger: logger}
	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	for _, dependency := range a.dependencies() {
		s.AddDependency(dependency)
	}

	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.WithField("port", cfg.Port).Infof("%s started", cfg.AppName)

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build(zap.Fields(zap.String("service", cfg.AppName)))
}

// app holds what the startup dependencies build, in the order they build it.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger

	db         database.DB
	publishers []events.Publisher
	checkers   map[string]health.Checker
	producer   *kafka.Producer
	redis      *redis.Client
	server     *http.Server
}

func (a *app) dependencies() []startup.StartupDependency {
	a.checkers = map[string]health.Checker{}

	deps := []startup.StartupDependency{
		&startup.Dependency{Name: "database", OnStart: a.startDatabase, OnStop: a.stopDatabase},
	}
	httpRequires := []string{"database"}

	if a.cfg.KafkaEnabled {
		deps = append(deps, &startup.Dependency{Name: "kafka", OnStart: a.startKafka, OnStop: a.stopKafka})
		httpRequires = append(httpRequires, "kafka")
	}
	if a.cfg.RedisEnabled {
		deps = append(deps, &startup.Dependency{Name: "redis", OnStart: a.startRedis, OnStop: a.stopRedis})
		httpRequires = append(httpRequires, "redis")
	}

	return append(deps, &startup.Dependency{
		Name:     "http",
		Requires: httpRequires,
		OnStart:  a.startHTTP,
		OnStop:   a.stopHTTP,
	})
}

func (a *app) startDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, database.ConnectionConfig{
		Driver:          a.cfg.DatabaseDriver,
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		SQLitePath:      a.cfg.DatabaseSQLitePath,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	source, err := migrations.FS(db.DriverName())
	if err != nil {
		_ = db.Close()
		return err
	}

	migrator := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	}, source)
	if err := migrator.Migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	a.db = db
	return nil
}

func (a *app) stopDatabase(context.Context) error {
	return a.db.Close()
}

func (a *app) startKafka(context.Context) error {
	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	a.publishers = append(a.publishers, a.producer)
	return nil
}

func (a *app) stopKafka(context.Context) error {
	return a.producer.Close()
}

func (a *app) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.checkers["redis"] = client
	a.publishers = append(a.publishers, redis.NewStreamPublisher(client, a.cfg.RedisStream, int64(a.cfg.RedisStreamMaxLen)))
	return nil
}

func (a *app) stopRedis(context.Context) error {
	return a.redis.Close()
}

func (a *app) startHTTP(context.Context) error {
	evses := evse.NewRepository(a.db, a.logger)
	transactions := transaction.NewRepository(a.db, a.logger)
	tariffs := tariff.NewRepository(a.db, a.logger, a.cfg.UpsertTimeout)
	profiles := chargingprofile.NewRepository(a.db, a.logger, evses, transactions, a.cfg.UpsertTimeout)

	events.Subscribe(tariffs.Notifier, "tariff", func(t models.Tariff) (string, string) {
		return t.Key().String(), t.DatabaseID
	}, a.logger, a.publishers...)
	events.Subscribe(profiles.Notifier, "chargingprofile", func(p models.ChargingProfile) (string, string) {
		return p.Key().String(), p.DatabaseID
	}, a.logger, a.publishers...)

	if _, err := routes.NewContainer(a.cfg.AppName, routes.Services{
		Logger:           a.logger,
		DB:               a.db,
		Tariffs:          tariffs,
		ChargingProfiles: profiles,
	}); err != nil {
		return err
	}

	e := routes.NewServer(routes.Dependencies{
		ServiceName:    a.cfg.AppName,
		ContainerID:    a.cfg.AppName,
		DB:             a.db,
		HealthCheckers: a.checkers,
		Logger:         a.logger,
	})

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}

func (a *app) stopHTTP(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
