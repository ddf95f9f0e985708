package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-api-auth/internal/infrastructure/jwt"
	"github.com/go-api-auth/internal/infrastructure/memory"
	"github.com/go-api-auth/internal/infrastructure/postgres"
	"github.com/go-api-auth/internal/infrastructure/queue"
	redisinfra "github.com/go-api-auth/internal/infrastructure/redis"
	"github.com/go-api-auth/internal/infrastructure/smtp"
	transporthttp "github.com/go-api-auth/internal/transport/http"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}
	cfg := config.Load()

	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	rdb, err := redisinfra.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	store := redisinfra.NewStore(rdb, cfg.StoreTimeout)
	if err := store.Ping(ctx); err != nil {
		slog.Warn("redis not reachable at startup", "err", err)
	}

	users, err := newUserStore(ctx, cfg)
	if err != nil {
		return err
	}

	// Credentials cannot be issued without keys.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("asynq redis uri: %w", err)
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	worker := queue.NewWorker(redisOpt, cfg.MailQueue, cfg.MailConcurrency, smtp.NewMailer(cfg), cfg.Flows.Code)
	if err := worker.Start(); err != nil {
		return err
	}
	defer worker.Shutdown()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Users:       users,
		Store:       store,
		JWTProvider: jwtProvider,
		Mail:        queue.NewMailQueue(queueClient, cfg.MailQueue),
	})
	defer router.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "user_store", cfg.UserStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newUserStore selects the durable user store named by USER_STORE.
func newUserStore(ctx context.Context, cfg *config.Config) (transporthttp.UserRepository, error) {
	switch cfg.UserStore {
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewUserRepo(client, cfg.DynamoTables.Users), nil
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewUserRepo(db), nil
	case "memory":
		slog.Warn("using in-memory user store, accounts are lost on restart")
		return memory.NewUserRepo(), nil
	default:
		return nil, fmt.Errorf("unknown USER_STORE %q", cfg.UserStore)
	}
}
