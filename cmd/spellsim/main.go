package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/spellcore/internal/config"
	"github.com/udisondev/spellcore/internal/data"
	"github.com/udisondev/spellcore/internal/db"
	"github.com/udisondev/spellcore/internal/engine"
	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/journal"
	"github.com/udisondev/spellcore/internal/scenario"
)

const ConfigPath = "config/spellsim.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("SPELLCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadEngine(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Per-node tracing in the runner and AI is only worth its cost at debug level
	effect.EnableDebugLogging(logLevel == slog.LevelDebug)

	slog.Info("spellsim starting", "log_level", cfg.LogLevel, "config", cfgPath)

	catalog, err := data.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	scn, err := scenario.Load(cfg.ScenarioPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	opts := []engine.Option{
		engine.WithTickInterval(cfg.TickInterval),
		engine.WithMaxChainLifetime(cfg.MaxChainLifetime),
		engine.WithQueueSize(cfg.CommandQueueSize),
	}

	var jrn *journal.Journal
	if cfg.Journal.Enabled {
		var sink journal.Sink = journal.LogSink{Logger: slog.Default()}
		if cfg.Journal.Persist {
			database, err := db.New(ctx, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer database.Close()
			slog.Info("database connected")

			version, err := db.RunMigrations(ctx, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			slog.Info("database migrations applied", "version", version)

			sink = db.NewJournalRepository(database.Pool())
		}
		jrn = journal.New(sink, journal.Options{
			BatchSize:     cfg.Journal.BatchSize,
			QueueSize:     cfg.Journal.QueueSize,
			FlushInterval: cfg.Journal.FlushInterval,
			Catalog:       catalog.Fingerprint(),
		})
		opts = append(opts, engine.WithJournal(jrn))
	}

	eng := engine.New(opts...)
	if err := scn.Apply(eng, catalog); err != nil {
		return fmt.Errorf("applying scenario: %w", err)
	}
	slog.Info("scenario loaded",
		"units", len(scn.Units),
		"casts", len(scn.Casts),
		"duration", scn.Duration)

	g, gctx := errgroup.WithContext(ctx)

	// The writer outlives the engine so the last step's rows are flushed.
	writerCtx, stopWriter := context.WithCancel(context.WithoutCancel(gctx))
	defer stopWriter()

	g.Go(func() error {
		defer stopWriter()
		slog.Info("starting engine", "interval", cfg.TickInterval)
		if err := eng.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("engine: %w", err)
		}
		return nil
	})

	if jrn != nil {
		g.Go(func() error {
			slog.Info("starting journal writer",
				"batch_size", cfg.Journal.BatchSize,
				"flush_interval", cfg.Journal.FlushInterval,
				"persist", cfg.Journal.Persist)
			if err := jrn.Run(writerCtx); err != nil {
				return fmt.Errorf("journal writer: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	summary := []any{
		"sim_time", eng.Now(),
		"steps", eng.Steps(),
		"units", eng.World().UnitCount(),
	}
	if jrn != nil {
		summary = append(summary, "journal_written", jrn.Written(), "journal_dropped", jrn.Dropped())
	}
	slog.Info("spellsim stopped", summary...)
	return nil
}

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
