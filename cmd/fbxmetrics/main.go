// Package main provides the fbxmetrics application entry point.
// fbxmetrics is a Freebox counter collector that pushes router metrics to a
// Prometheus Pushgateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/Dlizzz/fbxmetrics/internal/collector"
	"github.com/Dlizzz/fbxmetrics/internal/config"
	"github.com/Dlizzz/fbxmetrics/internal/discovery"
	fbxerrors "github.com/Dlizzz/fbxmetrics/internal/errors"
	"github.com/Dlizzz/fbxmetrics/internal/fbx"
	"github.com/Dlizzz/fbxmetrics/internal/metrics"
	"github.com/Dlizzz/fbxmetrics/internal/push"
	"github.com/Dlizzz/fbxmetrics/internal/scheduler"
	"github.com/Dlizzz/fbxmetrics/internal/store"
	"github.com/Dlizzz/fbxmetrics/pkg/sample"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Exit codes: 0 on success, 1 on runtime failure, 2 when the device denied
// or never answered a pairing request.
const (
	exitOK      = 0
	exitError   = 1
	exitPairing = 2
)

func setupLogger(cfg config.Config) {
	var handler slog.Handler
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func main() {
	var register bool
	var dryRun bool
	var once bool
	var showVersion bool
	var showHelp bool

	flag.BoolVar(&register, "register", false, "request pairing with the Freebox and store the credential")
	flag.BoolVar(&dryRun, "dry-run", false, "collect once and print the payload instead of pushing")
	flag.BoolVar(&once, "once", false, "run a single collect-and-push cycle and exit")
	flag.BoolVar(&showVersion, "version", false, "show version information")
	flag.BoolVar(&showHelp, "help", false, "show help information")
	flag.Parse()

	if showVersion {
		fmt.Printf("fbxmetrics %s (built: %s)\n", version, buildTime)

		if info, ok := debug.ReadBuildInfo(); ok {
			fmt.Printf("go version: %s\n", info.GoVersion)
		}

		os.Exit(exitOK)
	}

	if showHelp {
		fmt.Printf("fbxmetrics - Freebox counter collector\n\n")
		fmt.Printf("Usage: fbxmetrics [options]\n\n")
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nEnvironment variables:\n")
		fmt.Printf("  FREEBOX_HOST          Gateway hostname when mDNS fails (default: mafreebox.freebox.fr)\n")
		fmt.Printf("  DISCOVERY_TIMEOUT     mDNS browse timeout (default: 5s)\n")
		fmt.Printf("  HTTP_TIMEOUT          Per-request timeout (default: 10s)\n")
		fmt.Printf("  API_RATE_LIMIT        Device API requests per second (default: 5)\n")
		fmt.Printf("  PUSHGATEWAY_URL       Metrics sink (default: http://localhost:9091)\n")
		fmt.Printf("  PUSH_JOB              Pushgateway job label (default: fbxmetrics)\n")
		fmt.Printf("  PUSH_INSTANCE         Pushgateway instance label (default: device UID)\n")
		fmt.Printf("  POLL_INTERVAL         Time between cycles (default: 30s)\n")
		fmt.Printf("  REGISTER_TIMEOUT      Pairing approval deadline (default: 2m)\n")
		fmt.Printf("  TOKEN_FILE            Credential path (default: ~/.config/fbxmetrics/token.json)\n")
		fmt.Printf("  METRICS_PREFIX        Metric name prefix (default: fbx_)\n")
		fmt.Printf("  DEVICE_NAME           Name shown on the pairing screen (default: hostname)\n")
		fmt.Printf("  LOG_LEVEL             Log level: debug, info, warn, error (default: info)\n")
		fmt.Printf("  LOG_FORMAT            Log format: text, json (default: text)\n")
		os.Exit(exitOK)
	}

	cfg := config.Load()

	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(exitError)
	}

	slog.Info("Starting fbxmetrics",
		"version", version,
		"build_time", buildTime,
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if register {
		os.Exit(runRegister(ctx, cfg))
	}

	os.Exit(runCollect(ctx, cfg, dryRun, once))
}

// runRegister performs the one-time pairing handshake and stores the granted
// credential.
func runRegister(ctx context.Context, cfg config.Config) int {
	resolver := discovery.NewResolver(cfg.FreeboxHost, cfg.DiscoveryTimeout)

	ep, err := resolver.Resolve(ctx)
	if err != nil {
		slog.Error("Freebox discovery failed", "error", err)
		return exitError
	}

	client := fbx.NewClient(ep.BaseURL(), cfg.HTTPTimeout, cfg.APIRateLimit)
	auth := fbx.NewAuthenticator(client, fbx.DefaultIdentity(version, cfg.DeviceName))

	slog.Info("Pairing requested, accept on the Freebox front panel",
		"device_name", cfg.DeviceName,
		"timeout", cfg.RegisterTimeout)

	cred, err := auth.Register(ctx, cfg.RegisterTimeout)
	if err != nil {
		switch fbxerrors.KindOf(err) {
		case fbxerrors.KindRegistrationDenied:
			slog.Error("Pairing denied on the device", "error", err)
			return exitPairing
		case fbxerrors.KindRegistrationTimeout:
			slog.Error("Pairing request expired before approval", "error", err)
			return exitPairing
		default:
			slog.Error("Pairing failed", "error", err)
			return exitError
		}
	}

	if err := store.NewFileStore(cfg.TokenFile).Save(cred); err != nil {
		slog.Error("Credential could not be stored", "error", err)
		return exitError
	}

	slog.Info("Pairing granted, credential stored", "path", cfg.TokenFile)
	return exitOK
}

// runCollect wires the pipeline and drives it until shutdown (or for a
// single cycle with --once). Dry-run swaps the sink for stdout and implies a
// single cycle.
func runCollect(ctx context.Context, cfg config.Config, dryRun, once bool) int {
	cred, found, err := store.NewFileStore(cfg.TokenFile).Load()
	if err != nil {
		slog.Error("Credential could not be read", "path", cfg.TokenFile, "error", err)
		return exitError
	}
	if !found {
		slog.Error("No stored credential, run fbxmetrics --register first", "path", cfg.TokenFile)
		return exitError
	}

	resolver := discovery.NewResolver(cfg.FreeboxHost, cfg.DiscoveryTimeout)

	ep, err := resolver.Resolve(ctx)
	if err != nil {
		slog.Error("Freebox discovery failed", "error", err)
		return exitError
	}

	client := fbx.NewClient(ep.BaseURL(), cfg.HTTPTimeout, cfg.APIRateLimit)
	auth := fbx.NewAuthenticator(client, fbx.DefaultIdentity(version, cfg.DeviceName))
	session := fbx.NewSession(client, auth, cred)
	coll := collector.New(session, cfg.MetricsPrefix, collector.DefaultTargets())

	instance := cfg.PushInstance
	if instance == "" {
		instance = ep.UID
	}
	if instance == "" {
		instance = cfg.DeviceName
	}

	pushClient, err := push.New(cfg.SinkURL, cfg.PushJob, instance, cfg.HTTPTimeout, metrics.Registry)
	if err != nil {
		slog.Error("Sink configuration invalid", "url", cfg.SinkURL, "error", err)
		return exitError
	}

	var pusher scheduler.Pusher = pushClient
	if dryRun {
		slog.Info("Dry-run mode, payload goes to stdout")
		pusher = previewPusher{client: pushClient}
		once = true
	}

	sched := scheduler.New(resolver, session, coll, pusher, cfg.PollInterval,
		func(ep discovery.Endpoint) { client.SetBaseURL(ep.BaseURL()) })

	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		defer cancel()
		session.Logout(logoutCtx)
	}()

	if once {
		if err := sched.RunOnce(ctx); err != nil {
			slog.Error("Cycle failed", "error", err)
			return exitError
		}
		slog.Info("Cycle complete")
		return exitOK
	}

	err = sched.Run(ctx)
	if err != nil && ctx.Err() == nil {
		slog.Error("Shutdown with error", "error", err)
		return exitError
	}

	slog.Info("Shutdown complete")
	return exitOK
}

// previewPusher renders the payload to stdout instead of delivering it.
type previewPusher struct {
	client *push.Client
}

func (p previewPusher) Push(_ context.Context, samples []sample.Sample) error {
	return p.client.WriteTo(os.Stdout, samples)
}
