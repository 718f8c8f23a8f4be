// @title           kodbank API
// @version         1.0
// @description     Customer registration, login and balance lookup for kodbank.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	_ "github.com/kodbank/banking-api/docs"
	"github.com/kodbank/banking-api/internal/api"
	"github.com/kodbank/banking-api/internal/api/handler"
	"github.com/kodbank/banking-api/internal/core/ports"
	"github.com/kodbank/banking-api/internal/core/service"
	"github.com/kodbank/banking-api/internal/infrastructure/db/mongo"
	"github.com/kodbank/banking-api/internal/infrastructure/db/postgres"
	"github.com/kodbank/banking-api/internal/infrastructure/db/redis"
	"github.com/kodbank/banking-api/internal/infrastructure/worker"
	"github.com/kodbank/banking-api/internal/pkg/config"
	"github.com/kodbank/banking-api/internal/pkg/token"
	"github.com/kodbank/banking-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "kodbank-api",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// storage bundles the repositories of the selected backend.
type storage struct {
	users    ports.UserRepository
	sessions ports.SessionRepository
	name     string
	ping     handler.PingFunc
	close    func()
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()
	log.Info().Str("driver", store.name).Msg("storage connected")

	health := handler.NewHealthHandler(logger.Component("health")).WithDependency(store.name, store.ping)
	tokens := token.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authOpts := []service.AuthOption{
		service.WithBcryptCost(cfg.Auth.BcryptCost),
		service.WithSessionRetention(cfg.Auth.SessionRetention),
	}

	var cache ports.SessionCache
	if cfg.Redis.Enabled {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")

		cache = redis.NewSessionCache(rdb)
		authOpts = append(authOpts, service.WithSessionCache(cache))
		if cfg.Auth.LoginMaxAttempts > 0 {
			throttle := redis.NewLoginThrottle(rdb, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow)
			authOpts = append(authOpts, service.WithLoginThrottle(throttle))
		}
		health.WithDependency("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	authService := service.NewAuthService(store.users, store.sessions, tokens, logger.Component("auth"), authOpts...)
	balanceService := service.NewBalanceService(store.users)

	var verifier ports.SessionVerifier
	if cfg.Auth.SessionCheck {
		verifier = service.NewSessionService(store.sessions, cache, cfg.Auth.SessionRetention, logger.Component("session"))
	}

	sweeper := worker.NewSessionSweeper(store.sessions, cfg.Auth.SweepInterval, cfg.Auth.SessionRetention, logger.Component("sweeper"))
	sweeper.Start(ctx)

	e := api.NewRouter(api.Deps{
		Auth:         authService,
		Balance:      balanceService,
		Tokens:       tokens,
		Sessions:     verifier,
		Health:       health,
		Log:          logger.Component("http"),
		CORSOrigin:   cfg.CORSOrigin,
		SecureCookie: cfg.IsProduction(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
		}, logger.Component("postgres"))
		if err != nil {
			return nil, err
		}

		migrator, err := postgres.NewMigrator(pool, logger.Component("migrate"))
		if err != nil {
			pool.Close()
			return nil, err
		}
		err = migrator.Up(ctx)
		_ = migrator.Close()
		if err != nil {
			pool.Close()
			return nil, err
		}

		return &storage{
			users:    postgres.NewUserRepository(pool),
			sessions: postgres.NewSessionRepository(pool),
			name:     "postgres",
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil

	default:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		disconnect := func() {
			dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Disconnect(dctx)
		}

		users := mongo.NewUserRepository(db)
		sessions := mongo.NewSessionRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, fmt.Errorf("mongo user indexes: %w", err)
		}
		if err := sessions.EnsureIndexes(ctx, cfg.Auth.SessionRetention); err != nil {
			disconnect()
			return nil, fmt.Errorf("mongo session indexes: %w", err)
		}

		return &storage{
			users:    users,
			sessions: sessions,
			name:     "mongodb",
			ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:    disconnect,
		}, nil
	}
}
