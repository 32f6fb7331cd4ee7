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
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/preuvely/storematch/config"
	storerepo "github.com/preuvely/storematch/internal/repositories/store"
	"github.com/preuvely/storematch/pkg/catalog"
	"github.com/preuvely/storematch/pkg/database"
	"github.com/preuvely/storematch/pkg/events"
	"github.com/preuvely/storematch/pkg/kafka"
	"github.com/preuvely/storematch/pkg/matching"
	"github.com/preuvely/storematch/pkg/middleware"
	"github.com/preuvely/storematch/pkg/normalizers"
	"github.com/preuvely/storematch/pkg/redis"
	"github.com/preuvely/storematch/pkg/routes/duplicate"
	"github.com/preuvely/storematch/pkg/routes/health"
	storeroutes "github.com/preuvely/storematch/pkg/routes/store"
	"github.com/preuvely/storematch/pkg/startup"
	"github.com/preuvely/storematch/pkg/submission"
	"github.com/preuvely/storematch/pkg/tracing"
	"github.com/preuvely/storematch/pkg/tracing/exporters"
)

// storeCatalog is what both catalog backends provide
type storeCatalog interface {
	matching.StoreCatalog
	submission.StoreWriter
	storeroutes.Reader
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := setupTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	checker := health.NewChecker(cfg.Version)
	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)

	var (
		stores   storeCatalog
		locker   submission.Locker = submission.NewLocalLocker()
		producer events.Publisher  = events.DiscardPublisher{}
	)

	if cfg.CatalogDriver == "memory" {
		logger.Warn("Using in-memory store catalog; data is lost on restart")
		stores = catalog.NewMemory()
	} else {
		boot.AddDependency(postgresDependency(cfg, logger, checker, func(db database.DB) {
			stores = storerepo.NewRepository(db, logger)
		}))
	}

	if cfg.RedisEnabled {
		boot.AddDependency(redisDependency(cfg, logger, checker, func(client *redis.Client) {
			locker = redis.NewLocker(client, cfg.AppName+":lock:")
		}))
	}

	if cfg.KafkaEnabled {
		p := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		boot.AddDependency(kafkaDependency(cfg, p))
		producer = p
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = boot.Stop(stopCtx)
	}()

	var transliterator normalizers.Transliterator = normalizers.NoopTransliterator{}
	if cfg.TransliterationEnabled {
		transliterator = normalizers.NewASCIIFolder()
	}

	engine := matching.NewService(logger, stores, cfg.Matching(), matching.WithTransliterator(transliterator))
	submissions := submission.NewService(
		logger,
		engine,
		stores,
		locker,
		events.NewEmitter(producer, logger),
		transliterator,
		cfg.Submission(),
	)

	e := newServer(cfg, logger)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1/stores")
	duplicate.NewHandler(engine, logger).Register(api.Group("/duplicates"))
	storeroutes.NewHandler(submissions, stores, logger).Register(api)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) (ectologger.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zapCfg.Level = level

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger.With(zap.String("app", cfg.AppName)), nil), nil
}

func setupTracing(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter = exporters.NewLogExporter(logger)
	if cfg.OTLPEndpoint != "" {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = otlp
	}
	return tracing.Setup(cfg.AppName, exporter), nil
}

func newServer(cfg *config.Config, logger ectologger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewValidator()
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	return e
}

func postgresDependency(cfg *config.Config, logger ectologger.Logger, checker *health.Checker, ready func(database.DB)) *startup.Dependency {
	var conn *sqlx.DB
	return &startup.Dependency{
		Name: "postgres",
		StartFunc: func(ctx context.Context) error {
			db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseDSN())
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
			db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
			db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

			driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
			if err != nil {
				_ = db.Close()
				return fmt.Errorf("failed to create migration driver: %w", err)
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             cfg.DatabaseMigrationVersion,
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.Migrate(cfg.DatabaseName, driver); err != nil {
				_ = db.Close()
				return err
			}

			conn = db
			instance := database.NewDatabaseInstance(db, logger)
			checker.AddCheck("database", instance.PingContext)
			ready(instance)
			return nil
		},
		StopFunc: func(context.Context) error {
			if conn == nil {
				return nil
			}
			return conn.Close()
		},
	}
}

func redisDependency(cfg *config.Config, logger ectologger.Logger, checker *health.Checker, ready func(*redis.Client)) *startup.Dependency {
	var client *redis.Client
	return &startup.Dependency{
		Name: "redis",
		StartFunc: func(ctx context.Context) error {
			c, err := redis.NewClient(ctx, redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}

			client = c
			checker.AddCheck("redis", c.Ping)
			ready(c)
			return nil
		},
		StopFunc: func(context.Context) error {
			if client == nil {
				return nil
			}
			return client.Close()
		},
	}
}

// kafkaDependency verifies a broker is reachable before serving traffic
func kafkaDependency(cfg *config.Config, producer *kafka.Producer) *startup.Dependency {
	check := func(ctx context.Context) error {
		var lastErr error
		for _, broker := range cfg.KafkaBrokers {
			conn, err := kafkago.DialContext(ctx, "tcp", broker)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		return fmt.Errorf("no kafka broker reachable: %w", lastErr)
	}

	return &startup.Dependency{
		Name:      "kafka",
		StartFunc: check,
		StopFunc: func(context.Context) error {
			return producer.Close()
		},
	}
}
