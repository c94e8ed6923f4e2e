package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	apploan "github.com/biblioteca/backend/internal/application/loan"
	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
	"github.com/biblioteca/backend/internal/infrastructure/cache"
	"github.com/biblioteca/backend/internal/infrastructure/config"
	"github.com/biblioteca/backend/internal/infrastructure/logger"
	"github.com/biblioteca/backend/internal/infrastructure/messaging"
	"github.com/biblioteca/backend/internal/infrastructure/persistence"
	"github.com/biblioteca/backend/internal/infrastructure/telemetry"
	"github.com/biblioteca/backend/internal/interfaces/http/handler"
	"github.com/biblioteca/backend/internal/interfaces/http/middleware"
	"github.com/biblioteca/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting Biblioteca cart service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(log, meterProvider, tracerProvider, loggerProvider)
	log = loggerProvider.Bridge(log, log.Level())

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	cartMetrics, err := telemetry.NewCartMetrics(meter)
	if err != nil {
		return err
	}

	// Database with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if tracerProvider.IsEnabled() {
		if err := telemetry.InstrumentGorm(db.DB, cfg.Database.Driver); err != nil {
			return err
		}
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Redis backs the shared session store and the redis transport
	var redisClient *redis.Client
	if cfg.Cart.SessionStore == "redis" || cfg.Transport.Driver == "redis" {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			_ = redisClient.Close()
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	transport, err := messaging.NewTransportFactory(cfg.Transport, cfg.MQTT,
		messaging.WithRedisClient(redisClient),
		messaging.WithLogger(log),
	).Create()
	if err != nil {
		return err
	}
	defer func() {
		if err := transport.Close(); err != nil {
			log.Warn("Error closing transport", zap.Error(err))
		}
	}()

	clock := shared.SystemClock{}
	storeFactory := cache.NewSessionStoreFactory(cfg.Cart.SessionTTL,
		cache.WithRedisClient(redisClient),
		cache.WithLockTTL(cfg.Cart.SessionLockTTL),
		cache.WithClock(clock),
		cache.WithLogger(log),
	)
	sessions, err := storeFactory.Create(cfg.Cart.SessionStore)
	if err != nil {
		return err
	}
	locks, err := storeFactory.CreateLocker(cfg.Cart.SessionStore)
	if err != nil {
		return err
	}

	// Repositories
	bookRepo := persistence.NewGormBookRepository(db.DB)
	borrowerRepo := persistence.NewGormBorrowerRepository(db.DB)
	loanRepo := persistence.NewGormLoanRepository(db.DB)
	lineRepo := persistence.NewGormCartLineRepository(db.DB)

	// Cart services
	guard := appcart.NewLimitGuard(borrowerRepo, loanRepo, circulation.NewLimitPolicy(cfg.Cart.MaxItems), clock)
	ledger := appcart.NewLedger(sessions, lineRepo, bookRepo, guard, locks,
		appcart.WithStoreTimeout(cfg.Cart.StoreTimeout),
		appcart.WithLedgerClock(clock),
	)
	ingestor := appcart.NewIngestor(ledger, transport, cartMetrics, appcart.RetryConfig{
		MaxRetries: cfg.Cart.IngestMaxRetries,
		MaxElapsed: cfg.Cart.IngestRetryMaxElapsed,
	}, clock, log)
	finalizer := appcart.NewFinalizer(sessions, lineRepo, guard, persistence.NewGormTransactionScope(db.DB), locks,
		ingestor, clock, appcart.FinalizerConfig{
			LoanPeriod:   cfg.Cart.LoanPeriod,
			StoreTimeout: cfg.Cart.StoreTimeout,
		}, log)
	cartService := appcart.NewService(sessions, ledger, finalizer, ingestor, cartMetrics, appcart.ServiceConfig{
		ReplaceActiveSession: cfg.Cart.ReplaceActiveSession,
	}, log)
	expiration := appcart.NewExpirationService(lineRepo, cfg.Cart.SessionTTL, cfg.Cart.SweepInterval, clock, log)

	loanService := apploan.NewService(loanRepo, persistence.NewGormLoanTransactionScope(db.DB), clock, cfg.Cart.LoanPeriod, log)

	if err := ingestor.Start(ctx); err != nil {
		return err
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		CORS: middleware.CORSConfig{
			AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
			AllowMethods:  cfg.HTTP.CORSAllowMethods,
			AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders: []string{middleware.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		},
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Tracing:        tracerProvider.IsEnabled(),
		Meter:          meter,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	systemHandler := handler.NewSystemHandler(db, transport, version)
	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	router.NewRouter(engine).
		Register(systemHandler).
		Register(handler.NewCartHandler(cartService, cfg.Cart.SessionTTL)).
		Register(handler.NewLoanHandler(loanService)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return expiration.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func shutdownTelemetry(log *zap.Logger, mp *telemetry.MeterProvider, tp *telemetry.TracerProvider, lp *telemetry.LoggerProvider) {
	ctx := context.Background()
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Warn("Meter shutdown failed", zap.Error(err))
	}
	if err := lp.Shutdown(ctx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}
}
