// cmd/historian/main.go drains the room event queue from Redis into Postgres.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/roomd/internal/cache"
	"github.com/jason-s-yu/roomd/internal/config"
	"github.com/jason-s-yu/roomd/internal/database"
	"github.com/jason-s-yu/roomd/internal/historian"
	"github.com/jason-s-yu/roomd/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.LoadHistorian()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.NewEventArchive(pool).EnsureSchema(ctx); err != nil {
		return err
	}

	flush := func(ctx context.Context, events []room.Event) error {
		return database.InsertBatch(ctx, pool, events)
	}
	historian.NewService(rdb, cfg.EventsQueue, flush, cfg.BatchSize, cfg.FlushInterval, logger).Run(ctx)
	return nil
}
