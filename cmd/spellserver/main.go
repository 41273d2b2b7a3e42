package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/grimoire/internal/config"
	"github.com/udisondev/grimoire/internal/data"
	"github.com/udisondev/grimoire/internal/db"
	"github.com/udisondev/grimoire/internal/db/sqlite"
	"github.com/udisondev/grimoire/internal/game/skill"
	"github.com/udisondev/grimoire/internal/gmlink"
	"github.com/udisondev/grimoire/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadSpellServer(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("grimoire spell server starting", "log_level", cfg.LogLevel)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("flushing traces", "err", err)
		}
	}()

	repo, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	if err := data.LoadSpells(); err != nil {
		return fmt.Errorf("loading spells: %w", err)
	}
	slog.Info("spell catalog loaded", "spells", len(data.SpellIDs()))

	srv, err := gmlink.NewServer(cfg.GMLink, gmlink.NewExecutor(repo))
	if err != nil {
		return fmt.Errorf("creating gmlink server: %w", err)
	}

	slog.Info("config loaded",
		"storage", cfg.Storage.Driver,
		"gmlink", cfg.GMLink.Addr(),
		"cell_size", cfg.Scene.CellSize,
		"gridless", cfg.Scene.Gridless,
		"tracing", cfg.Telemetry.Enabled())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting gmlink server", "address", cfg.GMLink.Addr())
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("gmlink server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// storage is what the executor needs from either backend.
type storage interface {
	skill.ActorRepository
	skill.ManaLedger
}

// openStorage connects the configured backend and applies its migrations.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		slog.Info("database connected")

		if err := db.RunMigrations(ctx, dsn); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")
		return database.Actors(), database.Close, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		slog.Info("sqlite store opened", "path", cfg.SQLitePath)
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("closing sqlite store", "err", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
