package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/renavest/chat-service/internal/broker"
	"github.com/renavest/chat-service/internal/chat"
	"github.com/renavest/chat-service/internal/config"
	"github.com/renavest/chat-service/internal/handler"
	"github.com/renavest/chat-service/internal/observability"
	"github.com/renavest/chat-service/internal/repository/postgres"
	"github.com/renavest/chat-service/internal/stream"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	observability.InitLogger(cfg.ServiceName)
	log := observability.Log

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	db := initPostgres(ctx, cfg.DatabaseURL, log)
	defer db.Close()

	redisClient := initRedis(ctx, cfg.RedisAddr, log)
	defer redisClient.Close()

	store := postgres.New(db)
	brk := broker.New(redisClient, cfg.ReplayWindow)

	svc := chat.NewService(store, brk, cfg.ServiceName)
	registry := stream.NewRegistry()
	relay := stream.NewRelay(store, brk, cfg.ReplayWindow, cfg.ServiceName)
	streamH := stream.NewHandler(svc.Authorizer, relay, registry, cfg.ServiceName)

	router := handler.NewRouter(
		handler.NewChatHandler(svc),
		streamH,
		db,
		cfg.JWTSecret,
		cfg.ServiceName,
		cfg.ChatEnabled,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server",
			zap.String("addr", cfg.HTTPAddr),
			zap.Bool("chat_enabled", cfg.ChatEnabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	performGracefulShutdown(srv, registry, log)
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

func initPostgres(ctx context.Context, url string, log *zap.Logger) *sql.DB {
	db, err := sql.Open("postgres", url)
	if err != nil {
		log.Fatal("failed to open postgres", zap.Error(err))
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	return db
}

func initRedis(ctx context.Context, addr string, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	// An unreachable broker is a degraded start, not a failed one: sends
	// still persist and streams fall back to store-sourced replay.
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable at startup, chat delivery degraded", zap.Error(err))
	}
	return client
}

func performGracefulShutdown(srv *http.Server, registry *stream.Registry, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Open streams hold broker subscriptions; close them before the deferred
	// client teardown in main runs.
	registry.CloseAll()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error during server shutdown", zap.Error(err))
	}
	log.Info("shutdown complete, exiting")
}
