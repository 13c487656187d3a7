// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jason-s-yu/roomd/internal/auth"
	"github.com/jason-s-yu/roomd/internal/cache"
	"github.com/jason-s-yu/roomd/internal/config"
	"github.com/jason-s-yu/roomd/internal/database"
	"github.com/jason-s-yu/roomd/internal/handlers"
	"github.com/jason-s-yu/roomd/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// cleanupInterval is how often the registry is swept for empty rooms.
const cleanupInterval = time.Minute

func main() {
	logger := logrus.New()
	if err := run(logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(logger *logrus.Logger) error {
	cfg, err := config.Load()
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

	var sessions *auth.Sessions
	if cfg.AuthPrivateKey != "" && cfg.AuthPublicKey != "" {
		sessions, err = auth.NewSessionsFromPath(cfg.AuthPrivateKey, cfg.AuthPublicKey, cfg.TokenExpireTime)
	} else {
		logger.Warn("no AUTH_PRIVATE_KEY/AUTH_PUBLIC_KEY, tokens will not survive a restart")
		sessions, err = auth.NewSessions(cfg.TokenExpireTime)
	}
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}

	var (
		sinks   []room.EventSink
		workers sync.WaitGroup
	)
	startSink := func(sink *room.AsyncSink) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			sink.Run(ctx)
		}()
		sinks = append(sinks, sink)
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		pub := cache.NewPublisher(rdb, cfg.EventsQueue)
		startSink(room.NewAsyncSink("redis", cfg.EventBuffer, logger, pub.Publish))
		logger.Infof("publishing room events to redis list %q", cfg.EventsQueue)
	}

	switch {
	case cfg.DatabaseURL != "" && cfg.RedisAddr != "":
		logger.Info("room events go to redis; run cmd/historian to archive them")
	case cfg.DatabaseURL != "":
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		archive := database.NewEventArchive(pool)
		if err := archive.EnsureSchema(ctx); err != nil {
			return err
		}
		startSink(room.NewAsyncSink("archive", cfg.EventBuffer, logger, archive.Insert))
		logger.Info("archiving room events to postgres")
	}

	srv := handlers.NewRoomServer(logger, sessions, sinks...)
	go sweepEmptyRooms(ctx, srv.Registry)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", cfg.Addr())
		errc <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server exited: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}

	// Sink workers drain once ctx is done; they must finish before the
	// deferred Redis and Postgres closes run.
	stop()
	workers.Wait()
	return runErr
}

// sweepEmptyRooms runs the registry's empty-room cleanup until ctx is done.
func sweepEmptyRooms(ctx context.Context, reg *room.Registry) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.CleanupEmptyRooms()
		}
	}
}
