package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jrheling/pybotz/internal/api"
	"github.com/jrheling/pybotz/internal/channels"
	"github.com/jrheling/pybotz/internal/checker"
	"github.com/jrheling/pybotz/internal/config"
	"github.com/jrheling/pybotz/internal/database"
	"github.com/jrheling/pybotz/internal/discovery"
	"github.com/jrheling/pybotz/internal/inventory"
	"github.com/jrheling/pybotz/internal/recorder"
	"github.com/jrheling/pybotz/internal/scrape/netbotz"
	"github.com/jrheling/pybotz/internal/scrape/snmp"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	syncModules := flag.Bool("sync", false, "discover modules on configured hosts before polling")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg.Logging)
	logger.Info("Starting botzd",
		"version", "1.0.0",
		"tick_interval_ms", cfg.Poller.TickIntervalMS,
	)

	// Initialize database connection
	_, err = database.InitDB(cfg)
	if err != nil {
		log.Fatalf("DB init failed: %v", err)
	}
	defer database.Close()

	// Run embedded migrations (compiled into the binary)
	if err := database.RunMigrations(); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	// Shutdown signals cancel the root context for every worker.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	store := inventory.NewStore(pool, cfg.Defaults)
	inv, err := store.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load inventory: %v", err)
	}
	logger.Info("inventory loaded",
		"hosts", len(inv.Hosts),
		"modules", len(inv.Modules),
		"sensors", len(inv.Sensors),
	)

	// One client per appliance family; hosts select theirs by protocol.
	httpClient := netbotz.NewClient(logger)
	snmpClient := snmp.NewClient(logger)
	scrapers := map[string]checker.ModuleScraper{
		inventory.ProtocolHTTP: httpClient,
		inventory.ProtocolSNMP: snmpClient,
	}

	if *syncModules {
		discoverers := map[string]discovery.ModuleDiscoverer{
			inventory.ProtocolHTTP: httpClient,
			inventory.ProtocolSNMP: snmpClient,
		}
		discovery.Sync(ctx, inv, discoverers, store, logger)

		// Reload so newly registered modules show up in the inventory,
		// even though they start untracked.
		inv, err = store.Load(ctx)
		if err != nil {
			log.Fatalf("Failed to reload inventory after sync: %v", err)
		}
	}

	events := channels.NewEvents(50)
	defer events.Close()
	channels.StartModuleStateLogger(ctx, events, logger)

	rec := recorder.NewBatchRecorder(pool, cfg.Recorder, logger)

	var moduleCheckers []*checker.SensorModuleChecker
	for _, m := range inv.TrackedModules() {
		host, ok := inv.HostByID(m.HostID)
		if !ok {
			// Load already validated references; this is unreachable.
			continue
		}
		sensors := inv.TrackedSensors(m.ID)
		if len(sensors) == 0 {
			logger.Info("module tracked but has no tracked sensors, skipping",
				"module", m.Label(),
				"host", host.Address,
			)
			continue
		}
		mc := checker.NewSensorModuleChecker(
			host, m, sensors,
			scrapers[host.Protocol],
			rec, events, cfg.Poller, logger,
		)
		moduleCheckers = append(moduleCheckers, mc)
	}
	if len(moduleCheckers) == 0 {
		logger.Warn("no tracked modules with tracked sensors; nothing to poll")
	}

	checkerPool := checker.NewCheckerPool(moduleCheckers, cfg.Poller, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(checkerPool, logger),
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	g, gctx := errgroup.WithContext(ctx)

	// The recorder outlives the pool so readings submitted by checks that
	// finish during the shutdown grace window still get flushed.
	recCtx, recDone := context.WithCancel(context.Background())
	g.Go(func() error {
		defer recDone()
		if err := checkerPool.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("checker pool: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := rec.Run(recCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("recorder: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	logger.Info("botzd stopped gracefully")
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
