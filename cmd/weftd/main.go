package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvallejo/weft/internal/api"
	"github.com/nvallejo/weft/internal/credentials"
	"github.com/nvallejo/weft/internal/engine"
	"github.com/nvallejo/weft/internal/expressions"
	"github.com/nvallejo/weft/internal/logging"
	"github.com/nvallejo/weft/internal/monitor"
	"github.com/nvallejo/weft/internal/nodes"
	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/internal/streaming"
	"github.com/nvallejo/weft/internal/trigger"
	"github.com/nvallejo/weft/internal/validation"
	"github.com/nvallejo/weft/pkg/schema"
)

func main() {
	var (
		runWorkflow = flag.String("run", "", "run the given workflow ID once and exit")
		runInput    = flag.String("input", "", "JSON input for -run")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	if err := run(*runWorkflow, *runInput); err != nil {
		fmt.Fprintln(os.Stderr, "weftd:", err)
		os.Exit(1)
	}
}

func run(runWorkflow, runInput string) error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	if err := os.MkdirAll(weftDir(), 0o700); err != nil {
		return fmt.Errorf("create weft dir: %w", err)
	}

	base, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer base.Close()

	hub := streaming.NewMemoryHub()
	st := streaming.NewTappedStore(base, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	mon := monitor.NewSlogMonitor(logger)

	vault, err := newVault(st, cfg)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	registry := nodes.NewRegistry()
	if err := nodes.RegisterBuiltins(registry, nodes.Deps{
		Evaluator: expressions.NewExprEngine(),
		JQ:        expressions.NewGoJQEngine(),
		Monitor:   mon,
		Vault:     vault,
		HTTP:      nodes.HTTPConfig{DefaultTimeout: cfg.httpTimeout()},
	}); err != nil {
		return fmt.Errorf("register node library: %w", err)
	}

	dispatcher := engine.NewDispatcher(registry, st, mon, logger, engine.Config{
		PoolSize:       cfg.PoolSize,
		MaxUnitsPerRun: cfg.MaxUnitsPerRun,
	})

	if runWorkflow != "" {
		return runOnce(ctx, dispatcher, logger, runWorkflow, runInput)
	}

	scheduler := trigger.NewScheduler(st, dispatcher, logger)
	if cfg.Scheduler {
		if err := scheduler.RecoverMissed(ctx); err != nil {
			logger.Warn("missed schedule recovery failed", slog.String("error", err.Error()))
		}
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	triggers := trigger.NewService(st, dispatcher, scheduler, logger)

	validator, err := validation.NewWorkflowValidator(registry)
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}

	apiServer := api.NewServer(api.Deps{
		Store:      st,
		Triggers:   triggers,
		Controller: dispatcher,
		Validator:  validator,
		Hub:        hub,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: apiServer.Handler(),
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	logger.Info("weftd running",
		slog.String("db", cfg.DBPath),
		slog.String("listen", cfg.Listen),
		slog.Int("pool_size", cfg.PoolSize),
		slog.Bool("scheduler", cfg.Scheduler),
		slog.String("version", version),
	)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("weftd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runOnce executes a single workflow synchronously and prints the result.
func runOnce(ctx context.Context, d *engine.Dispatcher, logger *slog.Logger, workflowID, rawInput string) error {
	var input map[string]any
	if rawInput != "" {
		if err := json.Unmarshal([]byte(rawInput), &input); err != nil {
			return fmt.Errorf("parse -input: %w", err)
		}
	}

	exec, err := d.Run(ctx, workflowID, input, schema.RunModeManual)
	if err != nil && exec == nil {
		return err
	}

	out, merr := json.MarshalIndent(exec, "", "  ")
	if merr != nil {
		return merr
	}
	fmt.Println(string(out))

	if err != nil {
		return err
	}
	if exec.Status != schema.ExecutionStatusSuccess {
		logger.Warn("execution did not succeed", slog.String("status", string(exec.Status)))
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

// newVault builds the credential vault when key material is configured.
// Without key material the http-request node simply cannot resolve
// credential references.
func newVault(st store.Store, cfg Config) (credentials.Vault, error) {
	var vcfg credentials.VaultConfig
	switch {
	case cfg.MasterKey != "":
		vcfg = credentials.VaultConfig{MasterKey: []byte(cfg.MasterKey)}
	case cfg.Passphrase != "":
		vcfg = credentials.VaultConfig{
			Passphrase: cfg.Passphrase,
			Salt:       []byte(cfg.PassphraseSalt),
		}
	default:
		return nil, nil
	}

	v, err := credentials.NewAESVault(st, vcfg)
	if err != nil {
		return nil, err
	}
	return v, nil
}
