package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/kodbank/banking-api/internal/infrastructure/db/postgres"
	"github.com/kodbank/banking-api/pkg/logger"
)

func main() {
	command := flag.StringP("command", "c", "up", "migrate command (up|down|status)")
	target := flag.Int64("target", 0, "target version for down (0 rolls back one step)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	dsn := flag.String("database-url", "", "PostgreSQL DSN (defaults to $DATABASE_URL)")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.Init(logger.Options{Level: os.Getenv("LOG_LEVEL"), Pretty: true, Service: "kodbank-migrate"})

	if *dsn == "" {
		*dsn = os.Getenv("DATABASE_URL")
	}
	if *dsn == "" {
		log.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, postgres.Config{DSN: *dsn, MaxRetries: 1}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	migrator, err := postgres.NewMigrator(pool, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure migrations")
	}
	defer migrator.Close()

	switch *command {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx, *target)
	case "status":
		err = migrator.Status(ctx)
	default:
		err = fmt.Errorf("unsupported command %q", *command)
	}
	if err != nil {
		log.Error().Err(err).Str("command", *command).Msg("migration command failed")
		os.Exit(1)
	}

	log.Info().Str("command", *command).Msg("migration command completed")
}
