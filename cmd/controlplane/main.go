package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"streamgate/internal/api"
	"streamgate/internal/config"
	"streamgate/internal/journal"
	"streamgate/internal/observability/logging"
	"streamgate/internal/observability/metrics"
	"streamgate/internal/orchestrator"
	"streamgate/internal/server"
	"streamgate/internal/streamdir"
)

func main() {
	addr := flag.String("addr", "", "listen address, e.g. :8080")
	originMapPath := flag.String("origin-map", "", "path to the origin map YAML file")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	watchFlag := flag.Bool("watch", true, "reload the origin map when the file changes")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	cfg.ListenAddr = firstNonEmpty(*addr, cfg.ListenAddr)
	cfg.OriginMapPath = firstNonEmpty(*originMapPath, cfg.OriginMapPath)
	cfg.LogLevel = firstNonEmpty(*logLevel, cfg.LogLevel)
	cfg.LogFormat = firstNonEmpty(*logFormat, cfg.LogFormat)
	if !*watchFlag {
		cfg.WatchOriginMap = false
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	recorder := metrics.Default()

	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	}

	eventJournal, err := buildJournal(cfg)
	if err != nil {
		logger.Error("failed to initialise event journal", "error", err)
		os.Exit(1)
	}

	directory, err := buildDirectory(cfg)
	if err != nil {
		logger.Error("failed to initialise stream directory", "error", err)
		os.Exit(1)
	}

	orc := orchestrator.New(
		orchestrator.WithLogger(logging.WithComponent(logger, "orchestrator")),
		orchestrator.WithMetrics(recorder),
		orchestrator.WithJournal(eventJournal),
		orchestrator.WithStreamDirectory(directory),
	)

	if cfg.OriginMapPath == "" {
		logger.Warn("no origin map configured, starting with an empty topology")
	} else if err := applyOriginMap(context.Background(), orc, cfg.OriginMapPath, logger); err != nil {
		logger.Error("failed to apply origin map", "path", cfg.OriginMapPath, "error", err)
		os.Exit(1)
	}

	reload := make(chan struct{}, 1)
	handler := &api.Handler{
		Orc:     orc,
		Journal: eventJournal,
		Reload:  reload,
		Logger:  logging.WithComponent(logger, "api"),
	}
	srv := server.New(handler, server.Config{
		Addr:            cfg.ListenAddr,
		Logger:          logging.WithComponent(logger, "http"),
		Metrics:         recorder,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})

	var watcher *config.Watcher
	if cfg.WatchOriginMap && cfg.OriginMapPath != "" {
		watcher, err = config.NewWatcher(cfg.OriginMapPath, logging.WithComponent(logger, "watcher"))
		if err != nil {
			logger.Error("failed to watch origin map", "path", cfg.OriginMapPath, "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("control plane listening", "addr", cfg.ListenAddr)
		return srv.Run(groupCtx)
	})
	group.Go(func() error {
		var watchEvents <-chan struct{}
		if watcher != nil {
			watchEvents = watcher.Events()
		}
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-sighup:
			case <-reload:
			case <-watchEvents:
			}
			if cfg.OriginMapPath == "" {
				logger.Warn("reload requested but no origin map is configured")
				continue
			}
			if err := applyOriginMap(groupCtx, orc, cfg.OriginMapPath, logger); err != nil {
				logger.Error("origin map reload failed, keeping previous topology", "error", err)
				continue
			}
			logger.Info("origin map reloaded", "path", cfg.OriginMapPath)
		}
	})

	runErr := group.Wait()

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Warn("failed to stop origin map watcher", "error", err)
		}
	}

	closeCtx, cancel := shutdownCtx()
	defer cancel()
	if err := orc.Close(closeCtx); err != nil {
		logger.Warn("failed to close orchestrator", "error", err)
	}
	if err := eventJournal.Close(closeCtx); err != nil {
		logger.Warn("failed to close event journal", "error", err)
	}
	if err := directory.Close(); err != nil {
		logger.Warn("failed to close stream directory", "error", err)
	}

	if runErr != nil {
		logger.Error("control plane exited with error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("control plane stopped")
}

func buildJournal(cfg config.Config) (journal.Journal, error) {
	if cfg.JournalDSN == "" {
		return journal.NewMemory(cfg.JournalCapacity), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return journal.NewPostgres(ctx, journal.PostgresConfig{DSN: cfg.JournalDSN})
}

func buildDirectory(cfg config.Config) (streamdir.Directory, error) {
	if cfg.RedisAddr == "" {
		return streamdir.Noop{}, nil
	}
	return streamdir.NewRedis(streamdir.RedisConfig{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Key:      cfg.RedisKey,
	})
}

// applyOriginMap loads the origin map, reconciles the topology, and
// provisions the applications the map declares.
func applyOriginMap(ctx context.Context, orc *orchestrator.Orchestrator, path string, logger *slog.Logger) error {
	hosts, err := config.LoadOriginMap(path)
	if err != nil {
		return err
	}
	if result := orc.ApplyOriginMap(ctx, hosts); result != orchestrator.ResultSucceeded {
		return fmt.Errorf("reconcile finished with result %s", result)
	}

	for _, host := range hosts {
		for _, app := range host.Applications {
			switch result := orc.CreateApplication(ctx, host.Name, app); result {
			case orchestrator.ResultSucceeded:
				logger.Info("provisioned application", "vhost", host.Name, "app", app.Name)
			case orchestrator.ResultExists:
				// Already provisioned by an earlier apply.
			default:
				return fmt.Errorf("provision application %s/%s: result %s", host.Name, app.Name, result)
			}
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
