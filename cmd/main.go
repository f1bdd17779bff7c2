package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/lijuuu/CTFArenaService/internal/catalog"
	"github.com/lijuuu/CTFArenaService/internal/config"
	"github.com/lijuuu/CTFArenaService/internal/db"
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/handlers"
	"github.com/lijuuu/CTFArenaService/internal/jwt"
	"github.com/lijuuu/CTFArenaService/internal/logging"
	"github.com/lijuuu/CTFArenaService/internal/repo"
	"github.com/lijuuu/CTFArenaService/internal/service"
	"github.com/lijuuu/CTFArenaService/internal/state"
	"github.com/lijuuu/CTFArenaService/internal/store"
	"github.com/lijuuu/CTFArenaService/internal/wss"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	"github.com/lijuuu/CTFArenaService/internal/wss/middleware"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

type backend interface {
	store.Store
	store.Pinger
}

func main() {
	cfg := config.LoadConfig()
	log := logging.New(os.Stdout, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	var (
		st  backend
		rdb *redis.Client
	)
	switch cfg.StoreBackend {
	case config.BackendRedis:
		var err error
		rdb, err = db.NewRedisClient(ctx, &cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.SaveRedisData(context.Background(), rdb, log); err != nil {
				log.Warn(context.Background(), "saving redis data failed", "error", err)
			}
			_ = rdb.Close()
		}()
		rs := store.NewRedisStore(rdb, cfg.RedisNamespace, cfg.StoreTimeout)
		log.Info(ctx, "using redis store", "addr", rs.Addr(), "namespace", cfg.RedisNamespace)
		st = rs
	case config.BackendMemory:
		st = store.NewMemoryStore()
	default:
		return fmt.Errorf("unknown STOREBACKEND %q", cfg.StoreBackend)
	}
	log.Info(ctx, "store ready", "backend", cfg.StoreBackend)

	opts := []engine.Option{engine.WithLogger(log)}
	var standings handlers.StandingsReader

	if cfg.PsqlURL != "" {
		gdb, err := db.InitPsql(ctx, &cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
		attempts := repo.NewPSQLRepository(gdb)
		if err := attempts.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate attempt log: %w", err)
		}
		opts = append(opts, engine.WithAttemptRecorder(attempts))
		log.Info(ctx, "attempt log enabled")
	}

	if cfg.MongoURL != "" {
		client, err := db.InitMongo(ctx, &cfg, log)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		archive := repo.NewMongoRepository(client, cfg.MongoDB)
		opts = append(opts, engine.WithArchiver(archive))
		standings = archive
		log.Info(ctx, "standings archive enabled", "db", cfg.MongoDB)
	}

	eng := engine.New(st, catalog.Default(), opts...)

	hub := state.NewHub(st, eng, log)
	hub.OnSnapshot(store.CollectionChallenges, eng.OnChallenges)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("subscribe to store: %w", err)
	}
	defer hub.Close()

	if err := eng.ReconcileAll(ctx); err != nil {
		log.Warn(ctx, "startup recompute failed, will retry on next trigger", "error", err)
	}

	jm := jwt.NewJWTManager(cfg.JWTSecret, cfg.AdminKey, cfg.TokenTTL)

	wsState := wsstypes.NewState(eng, hub, jm, log)
	dispatcher := wss.NewArenaDispatcher(middleware.NewAuthMiddleware(jm))
	wsHandler := wss.WsHandler(dispatcher, wsState, wss.NewUpgrader(cfg.AllowedOrigins))

	gin.SetMode(gin.ReleaseMode)
	h := handlers.NewHandler(eng, jm, standings, broadcasts.Notifier{State: wsState})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handlers.NewRouter(h, log, wsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	health := service.NewHealthService(st, 5*time.Second, log)
	grpcServer := service.NewGRPCServer(health)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go health.Run(ctx)

	errCh := make(chan error, 2)
	go func() {
		log.Info(ctx, "http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info(ctx, "grpc server listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	return nil
}
