package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/clinicore/clinicore/internal/app"
	"github.com/clinicore/clinicore/internal/appointments"
	"github.com/clinicore/clinicore/internal/auth"
	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/masterdata"
	"github.com/clinicore/clinicore/internal/observability"
	"github.com/clinicore/clinicore/internal/patients"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/rbac"
	"github.com/clinicore/clinicore/internal/records"
	"github.com/clinicore/clinicore/internal/shared"
	"github.com/clinicore/clinicore/internal/users"
	"github.com/clinicore/clinicore/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "clinicore_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Source: rbacService, Logger: logger}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, rbacService)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, rbacService)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	patientsRepo := patients.NewRepository(pool)
	patientsService := patients.NewService(patientsRepo)
	patientsHandler := patients.NewHandler(logger, patientsService, rbacMiddleware)

	appointmentsRepo := appointments.NewRepository(pool)
	appointmentsService := appointments.NewService(appointmentsRepo)
	appointmentsHandler := appointments.NewHandler(logger, appointmentsService, rbacMiddleware)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, idempotencyStore)
	inventoryService.SetNotifier(metrics)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	recordsRepo := records.NewRepository(pool)
	recordsService := records.NewService(recordsRepo, auditLogger)
	recordsHandler := records.NewHandler(logger, recordsService, rbacMiddleware)

	masterDataHandler := masterdata.NewHandler(logger, pool, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		PatientsHandler:     patientsHandler,
		AppointmentsHandler: appointmentsHandler,
		RecordsHandler:      recordsHandler,
		InventoryHandler:    inventoryHandler,
		MasterDataHandler:   masterDataHandler,
		JobsHandler:         jobsHandler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
