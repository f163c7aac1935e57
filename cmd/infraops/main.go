// infraops is an intent-routing orchestrator for infrastructure provisioning:
// free-text requests become structured tool intents, destructive operations
// are held for confirmation, and infrastructure changes run through a
// Terraform engine subprocess serialized per resource domain.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"infraops/pkg/config"
	"infraops/pkg/dispatch"
	"infraops/pkg/locker"
	"infraops/pkg/logx"
	"infraops/pkg/mcp"
	"infraops/pkg/metrics"
	"infraops/pkg/monitor"
	"infraops/pkg/persistence"
	"infraops/pkg/router"
	"infraops/pkg/session"
	"infraops/pkg/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "infraops: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		port       int
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (YAML)")
	flag.IntVar(&port, "port", 0, "Listen port (overrides config)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.Parse()

	if debug {
		logx.SetDebug(true)
	}

	if err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	logger := logx.NewLogger("main")

	// Engine path: MCP subprocess, wrapped in per-domain locking and retry.
	engine := mcp.NewClient(&cfg.MCP)
	defer engine.Close()

	policy := locker.RetryPolicy{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  cfg.InitialRetryDelay(),
		BackoffFactor: 2.0,
	}
	invoker := locker.NewSerialized(engine, policy)

	recorder := metrics.NewRecorder()
	invoker.SetRetryObserver(recorder.RecordRetry)

	monitorClient := monitor.NewClient(cfg.Monitor.BaseURL, cfg.MonitorTimeout())

	// The model client doubles as the monitoring-data analyzer. Without a
	// credential (or with the deterministic flag set) both are absent and
	// routing degrades to the rule table.
	var completer router.Completer
	var analyzer tools.Analyzer
	if !cfg.Router.UseSimple && cfg.LLM.APIKey != "" {
		llm := router.NewClient(cfg.LLM, cfg.LLMTimeout(), logx.NewLogger("llm"))
		completer = llm
		analyzer = llm
	} else {
		logger.Info("deterministic routing only (no model credential or use_simple set)")
	}

	registry := tools.NewRegistry()
	tools.RegisterAll(registry, invoker, monitorClient, analyzer)

	var store *persistence.Store
	if cfg.DBPath != "" {
		store, err = persistence.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("audit store: %w", err)
		}
		defer store.Close()
	}

	rt := router.New(registry, completer)
	var auditor dispatch.Auditor
	if store != nil {
		auditor = store
	}
	dispatcher := dispatch.New(registry, recorder, auditor)
	chat := session.NewService(rt, dispatcher, recorder)

	server := session.NewServer(chat, registry, dispatcher)
	server.SetEngineLister(engine)
	server.SetMetricsHandler(recorder.Handler())
	if store != nil {
		server.SetAuditStore(store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting infraops on port %d (persistent engine: %v)", cfg.Server.Port, cfg.MCP.Persistent)
	if err := server.StartServer(ctx, cfg.Server.Port); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	// Give in-flight engine calls a moment to finish before Close tears the
	// persistent subprocess down.
	time.Sleep(100 * time.Millisecond)
	logger.Info("shutdown complete")
	return nil
}
