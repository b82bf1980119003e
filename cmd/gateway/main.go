// Package main implements the entry point for the MCP gateway: a protocol
// gateway terminating JSON-RPC requests, SSE push streams and duplex
// websocket streams, with session-scoped notification replay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/component"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/config"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/dispatch"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/gateway"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/gateway/duplex"
	gatewayhttp "github.com/eyjolfurgudnivatne/mcp.gateway-sub003/gateway/http"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/gateway/sse"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/health"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/natsclient"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/notify"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "mcp-gateway"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	// Metrics endpoint
	metricsRegistry, metricsServer, err := setupMetrics(cfg)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	healthMonitor := health.NewMonitor()

	// Notification bus (optional)
	natsClient, err := setupNATS(ctx, cfg, metricsRegistry, healthMonitor)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer natsClient.Close(ctx)
	}

	// Core pipeline: sessions, fan-out, dispatch
	app, err := buildGateway(cfg, logger, metricsRegistry, healthMonitor, natsClient)
	if err != nil {
		return err
	}

	// Run application with signal handling
	return runWithSignalHandling(ctx, app, healthMonitor, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting MCP gateway",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// setupMetrics creates the metrics registry and serves the Prometheus
// endpoint when enabled.
func setupMetrics(cfg *config.Config) (*metric.MetricsRegistry, *metric.Server, error) {
	if !cfg.Metrics.Enabled {
		slog.Info("Metrics disabled")
		return nil, nil, nil
	}

	registry := metric.NewMetricsRegistry()
	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)

	// Start blocks in ListenAndServe until Stop, so it runs on its own
	// goroutine; a clean shutdown returns nil
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Metrics server exited", "error", err)
		}
	}()

	slog.Info("Metrics endpoint started", "address", server.Address(), "path", cfg.Metrics.Path)
	return registry, server, nil
}

// setupNATS connects the notification bus when enabled.
func setupNATS(
	ctx context.Context,
	cfg *config.Config,
	metricsRegistry *metric.MetricsRegistry,
	healthMonitor *health.Monitor,
) (*natsclient.Client, error) {
	if !cfg.NATS.Enabled {
		slog.Info("NATS disabled; notifications limited to in-process producers")
		return nil, nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				healthMonitor.UpdateHealthy("nats", "connected")
			} else {
				healthMonitor.UpdateUnhealthy("nats", "connection degraded")
			}
		}),
	}
	if metricsRegistry != nil {
		opts = append(opts, natsclient.WithMetrics(metricsRegistry.CoreMetrics()))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}

	healthMonitor.UpdateHealthy("nats", "connected")
	return client, nil
}

// gatewayApp is the ordered set of lifecycle components making up the
// gateway. Components start in slice order and stop in reverse.
type gatewayApp struct {
	components []component.LifecycleComponent
}

// buildGateway wires the session manager, notification pipeline and all
// three transports.
func buildGateway(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
	healthMonitor *health.Monitor,
	natsClient *natsclient.Client,
) (*gatewayApp, error) {
	sessionManager := session.NewManager(session.ManagerConfig{
		TTL:             cfg.Session.TTL.Std(),
		SweepInterval:   cfg.Session.SweepInterval.Std(),
		BufferCapacity:  cfg.Session.BufferCapacity,
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
	})

	notifyMetrics := notify.NewMetrics(metricsRegistry)
	streamRegistry := notify.NewRegistry(notifyMetrics)
	sessionManager.OnRemove(streamRegistry.CloseSession)

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Manager:         sessionManager,
		Registry:        streamRegistry,
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
		Metrics:         notifyMetrics,
	})

	methods := dispatch.NewRegistry()
	if err := gateway.RegisterCoreMethods(methods, gateway.ServerInfo{
		Name:    cfg.Platform.Name,
		Version: Version,
	}); err != nil {
		return nil, fmt.Errorf("register core methods: %w", err)
	}

	engine := duplex.NewEngine(duplex.EngineConfig{
		StreamIdleTimeout: cfg.Duplex.StreamIdleTimeout.Std(),
		MaxFrameSize:      cfg.Duplex.MaxFrameSize,
		PingInterval:      cfg.Duplex.PingInterval.Std(),
		Sessions:          sessionManager,
		Logger:            logger,
		MetricsRegistry:   metricsRegistry,
	})

	pushHandler := sse.NewHandler(sse.HandlerConfig{
		Sessions:    sessionManager,
		Registry:    streamRegistry,
		Heartbeat:   cfg.HTTP.SSEHeartbeat.Std(),
		RetryMillis: cfg.HTTP.SSERetryMillis,
		Logger:      logger,
	})

	httpServer := gatewayhttp.NewServer(gatewayhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		BasePath:       cfg.HTTP.BasePath,
		MaxRequestSize: cfg.HTTP.MaxRequestSize,
		EnableCORS:     cfg.HTTP.EnableCORS,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		Sessions:       sessionManager,
		Methods:        methods,
		Push:           pushHandler,
		Duplex:         engine,
		DuplexPath:     cfg.Duplex.Path,
		Health:         healthMonitor,
		StatsProviders: []component.Discoverable{sessionManager, dispatcher, engine, pushHandler},
		Logger:         logger,
	})

	components := []component.LifecycleComponent{sessionManager, dispatcher, engine}

	if natsClient != nil {
		source := notify.NewSource(notify.SourceConfig{
			Client:        natsClient,
			Dispatcher:    dispatcher,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Logger:        logger,
			Metrics:       notifyMetrics,
		})
		components = append(components, source)
	}

	// The HTTP listener starts last so every dependency is live first
	components = append(components, httpServer)

	return &gatewayApp{components: components}, nil
}

// startAll initializes and starts components in order, unwinding the ones
// already started when one fails.
func (app *gatewayApp) startAll(ctx context.Context) error {
	started := make([]component.LifecycleComponent, 0, len(app.components))

	for _, c := range app.components {
		name := c.Meta().Name

		if err := c.Initialize(); err != nil {
			app.stopStarted(started)
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		if err := c.Start(ctx); err != nil {
			app.stopStarted(started)
			return fmt.Errorf("start %s: %w", name, err)
		}

		started = append(started, c)
		slog.Info("Component started", "name", name)
	}
	return nil
}

func (app *gatewayApp) stopStarted(started []component.LifecycleComponent) {
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(5 * time.Second); err != nil {
			slog.Warn("Component stop failed during unwind",
				"name", started[i].Meta().Name, "error", err)
		}
	}
}

// stopAll stops components in reverse start order.
func (app *gatewayApp) stopAll(timeout time.Duration) error {
	var firstErr error
	for i := len(app.components) - 1; i >= 0; i-- {
		c := app.components[i]
		if err := c.Stop(timeout); err != nil {
			slog.Error("Component stop failed", "name", c.Meta().Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// runWithSignalHandling starts all components and blocks until shutdown
func runWithSignalHandling(
	ctx context.Context,
	app *gatewayApp,
	healthMonitor *health.Monitor,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := app.startAll(signalCtx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	for _, c := range app.components {
		healthMonitor.UpdateHealthy(c.Meta().Name, "started")
	}
	slog.Info("MCP gateway started", "components", len(app.components))

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := app.stopAll(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("MCP gateway shutdown complete")
	return nil
}
