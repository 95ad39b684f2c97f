package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/infodancer/connlimitd/internal/config"
	"github.com/infodancer/connlimitd/internal/connlimit"
	"github.com/infodancer/connlimitd/internal/creds"
	"github.com/infodancer/connlimitd/internal/logging"
	"github.com/infodancer/connlimitd/internal/metrics"
	"github.com/infodancer/connlimitd/internal/protocol"
	"github.com/infodancer/connlimitd/internal/server"
	"github.com/infodancer/connlimitd/internal/tracker"
)

func runServe() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.Auth.CredentialsFile == "" {
		fmt.Fprintf(os.Stderr, "a credentials file is required\n")
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	// Resolve config path to absolute so SIGHUP reloads find it regardless of cwd.
	configPath, err := filepath.Abs(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error resolving config path: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	// The store holds the current configuration snapshot; SIGHUP swaps
	// in a new one. The admission checker reads the limit directory
	// through the store, so a reload takes effect on the next check.
	// Listener addresses are fixed at startup.
	store := config.NewStore(cfg)
	go store.WatchSignals(ctx, configPath, flags, logger)

	credStore, err := creds.Load(cfg.Auth.CredentialsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading credentials: %v\n", err)
		os.Exit(1)
	}
	logger.Info("loaded credentials",
		"path", cfg.Auth.CredentialsFile,
		"principals", credStore.Len())

	var tr tracker.Tracker
	switch cfg.Tracker.Backend {
	case config.TrackerRedis:
		rt := tracker.NewRedis(cfg.Tracker.Redis)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := rt.Ping(pingCtx)
		pingCancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error connecting to redis: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Error("error closing redis tracker", "error", err.Error())
			}
		}()
		tr = rt
		logger.Info("using redis tracker", "addr", cfg.Tracker.Redis.Addr)
	default:
		tr = tracker.NewMemory()
		logger.Info("using memory tracker")
	}

	// Metrics HTTP server with its own registry; the collector feeds it.
	var collector metrics.Collector = &metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewPrometheusServer(cfg.Metrics.Address, cfg.Metrics.Path)
		collector = metrics.NewPrometheusCollector(metricsServer.Registry())
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err.Error())
			}
		}()
	}

	checker := connlimit.New(connlimit.Config{
		Directory:  store.LimitDirectory,
		Principals: credStore,
		Counter:    tr,
	})

	// Admission runs as a post-authentication hook: every attempt is
	// observed, and a quota rejection aborts connection setup.
	var hooks server.HookChain
	hooks.Register(func(ctx context.Context, ev server.AuthEvent) error {
		if !ev.Authenticated {
			return nil
		}
		decision := checker.Check(ctx, ev.Principal)
		collector.AdmissionCheck(decision.Outcome.String())
		if err := decision.Err(); err != nil {
			collector.ConnectionRejected(ev.Principal)
			return err
		}
		return nil
	})

	srv, err := server.New(server.Config{Cfg: &cfg, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating server: %v\n", err)
		os.Exit(1)
	}
	srv.SetHandler(protocol.Handler(cfg.Hostname, credStore, tr, &hooks, collector))

	logger.Info("starting connlimitd",
		"hostname", cfg.Hostname,
		"listeners", len(cfg.Listeners),
		"limit_directory", store.LimitDirectory(),
		"tracker", string(cfg.Tracker.Backend))

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("connlimitd stopped")
}
