// Command netwatch runs the network-availability monitor: it probes a
// configured set of endpoints, tracks confirmed up/down transitions, serves
// a dashboard API, and fans out webhook notifications.
//
// # Usage
//
//	netwatch --config config.json
//
// # Configuration
//
// Configuration is loaded from a JSON file (default config.json), with the
// path overridable via --config or NETWATCH_CONFIG_PATH. Logging verbosity
// is controlled by NETWATCH_LOG_LEVEL (debug, info, warn, error).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ifpj/netwatch/internal/api"
	"github.com/ifpj/netwatch/internal/config"
	"github.com/ifpj/netwatch/internal/eventbus"
	"github.com/ifpj/netwatch/internal/persistence"
	"github.com/ifpj/netwatch/internal/probe"
	"github.com/ifpj/netwatch/internal/shutdown"
	"github.com/ifpj/netwatch/internal/supervisor"
	"github.com/ifpj/netwatch/internal/types"
	"github.com/ifpj/netwatch/internal/webhook"
)

const version = "0.1.0"

func main() {
	var (
		configFlag = flag.String("config", "", "path to config.json")
		cacheFlag  = flag.String("cache", "", "path to cache.json")
		initFlag   = flag.Bool("init", false, "write a default config.json if missing, then start")
		printVer   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *printVer {
		fmt.Println("netwatch " + version)
		return
	}

	logger := newLogger()

	configPath := orDefault(*configFlag, config.PathFromEnv(config.DefaultConfigPath))
	cachePath := orDefault(*cacheFlag, persistence.PathFromEnv(persistence.DefaultCachePath))

	if *initFlag {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := config.Save(configPath, config.Default()); err != nil {
				logger.Error("failed to write default config", "error", err)
				os.Exit(1)
			}
			logger.Info("wrote default config", "path", configPath)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	registry := probe.NewRegistry()
	for _, e := range []probe.Executor{
		probe.NewTCPExecutor(),
		probe.NewICMPExecutor(),
		probe.NewDNSExecutor(),
		probe.NewHTTPExecutor(),
		probe.NewHTTPSExecutor(),
	} {
		if err := registry.Register(e); err != nil {
			logger.Error("failed to register probe executor", "error", err)
			os.Exit(1)
		}
	}

	snapshot, ok, err := persistence.LoadSnapshot(cachePath)
	if err != nil {
		logger.Error("failed to read cache", "path", cachePath, "error", err)
		os.Exit(1)
	}
	var restored map[string]types.TargetStatus
	if ok {
		restored = persistence.Restore(snapshot, cfg)
		logger.Info("restored snapshot", "path", cachePath, "targets", len(restored))
	}

	bus := eventbus.New()
	runCtx, cancelRun := context.WithCancel(context.Background())

	sup := supervisor.New(registry, bus, logger)
	sup.Start(runCtx, cfg, restored)

	dispatcher := webhook.New(logger)
	dispatcher.SetWebhooks(cfg.Alert.Webhooks)
	dispatcher.Start(runCtx, bus)

	snapshotManager := persistence.NewManager(cachePath, sup.Statuses, logger)
	go snapshotManager.Run(runCtx)

	configStore := api.NewFileConfigStore(configPath, func() types.Config { return cfg }, func(newCfg types.Config) error {
		cfg = newCfg
		sup.ApplyConfig(newCfg, nil)
		dispatcher.SetWebhooks(newCfg.Alert.Webhooks)
		return nil
	})

	runnerDrainTimeout := maxTimeout(cfg.Targets) + time.Second
	listenAddr := cfg.HTTP.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	// Bind before waiting on shutdown signals, so an unbindable port fails
	// the process immediately (exit 1) instead of surfacing only as a
	// logged error while the process idles waiting for a signal.
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		logger.Error("failed to bind http listener", "addr", listenAddr, "error", err)
		os.Exit(1)
	}

	httpServer := newHTTPServer(sup.Statuses, configStore, bus, logger)
	go func() {
		logger.Info("http server listening", "addr", listenAddr)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "error", err)
		}
	}()

	exitCode := shutdown.Run(logger, shutdown.Hooks{
		Cancel: cancelRun,
		WaitRunners: func(ctx context.Context) {
			waitBounded(ctx, sup.Shutdown)
		},
		FlushWebhooks: func(ctx context.Context) {
			waitBounded(ctx, dispatcher.Stop)
		},
		WriteSnapshot: snapshotManager.WriteNow,
		RunnerDrainTimeout: runnerDrainTimeout,
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	httpServer.Shutdown(shutdownCtx)
	cancel()

	os.Exit(exitCode)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("NETWATCH_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func maxTimeout(targets []types.Target) time.Duration {
	var max time.Duration
	for _, t := range targets {
		if d := t.Timeout(); d > max {
			max = d
		}
	}
	return max
}

// waitBounded runs fn to completion in a goroutine, returning early if ctx
// is canceled first; fn is left running in the background in that case.
func waitBounded(ctx context.Context, fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
