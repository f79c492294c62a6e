package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quickex/config"
	"quickex/core"
	"quickex/core/events"
	"quickex/crypto"
	"quickex/observability"
	"quickex/observability/logging"
	"quickex/observability/telemetry"
	"quickex/rpc"
	"quickex/storage"
)

const (
	envVar          = "QUICKEX_ENV"
	eventFeedLimit  = 1024
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv(envVar)); override != "" {
		env = override
	}
	logger := logging.SetupWithFile("quickexd", env, fileOptions(cfg))

	if err := run(cfg, logger); err != nil {
		logger.Error("quickexd terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

func fileOptions(cfg *config.Config) *logging.FileOptions {
	if strings.TrimSpace(cfg.Log.File) == "" {
		return nil
	}
	return &logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
}

func telemetryOptions(cfg *config.Config) telemetry.Options {
	return telemetry.Options{
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendLevelDB:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare data directory: %w", err)
		}
		return storage.NewLevelDB(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// buildGenesis converts the configured genesis section. Config validation has
// already checked every field, but errors are still reported rather than
// assumed away.
func buildGenesis(file config.GenesisFile) (core.Genesis, error) {
	var genesis core.Genesis
	for _, token := range file.Tokens {
		genesis.Tokens = append(genesis.Tokens, core.GenesisToken{
			Symbol:   token.Symbol,
			Name:     token.Name,
			Decimals: token.Decimals,
		})
	}
	for i, bal := range file.Balances {
		account, err := crypto.ParseAccount(bal.Account)
		if err != nil {
			return core.Genesis{}, fmt.Errorf("balance %d: %w", i, err)
		}
		amount, err := config.ParseAmount(bal.Amount)
		if err != nil {
			return core.Genesis{}, fmt.Errorf("balance %d: %w", i, err)
		}
		genesis.Balances = append(genesis.Balances, core.GenesisBalance{
			Account: account,
			Token:   bal.Token,
			Amount:  amount,
		})
	}
	if admin := strings.TrimSpace(file.Admin); admin != "" {
		account, err := crypto.ParseAccount(admin)
		if err != nil {
			return core.Genesis{}, fmt.Errorf("admin: %w", err)
		}
		genesis.Admin = &account
	}
	return genesis, nil
}

// logEmitter writes committed events to the service log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	rendered := evt.Event()
	if rendered == nil {
		return
	}
	attrs := []any{slog.String("type", rendered.Type), slog.Uint64("sequence", rendered.Sequence)}
	if token := rendered.Attributes["token"]; token != "" {
		attrs = append(attrs, slog.String("token", token))
	}
	if c := rendered.Attributes["commitment"]; c != "" {
		attrs = append(attrs, slog.String("commitment", c))
	}
	for _, key := range []string{"owner", "amount"} {
		if v := rendered.Attributes[key]; v != "" {
			attrs = append(attrs, logging.MaskField(key, v))
		}
	}
	l.logger.Info("event committed", attrs...)
}

func newServer(cfg *config.Config, node *core.Node, logger *slog.Logger) *rpc.Server {
	recorder := events.NewRecorder(eventFeedLimit)
	emitters := events.Multi{recorder, logEmitter{logger: logger}}
	serverCfg := rpc.ServerConfig{
		MaxSkew:         cfg.MaxSkew(),
		ReplayCacheSize: cfg.Auth.ReplayCacheSize,
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			TrustProxyHeaders: cfg.RateLimit.TrustProxyHeaders,
		},
		Logger: logger,
		Events: recorder,
	}
	if cfg.Metrics.Enabled {
		emitters = append(emitters, observability.Events())
		serverCfg.Metrics = observability.ModuleMetrics()
	}
	node.SetEmitter(emitters)
	return rpc.NewServer(node, serverCfg)
}

func run(cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node := core.NewNode(db)
	node.SetLogger(logger)

	genesis, err := buildGenesis(cfg.Genesis)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Setup(ctx, telemetryOptions(cfg))
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(flushCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		}()
		logger.Info("telemetry enabled", slog.String("endpoint", cfg.Telemetry.Endpoint))
	}

	fresh, err := node.ApplyGenesis(ctx, genesis)
	if err != nil {
		return err
	}
	logger.Info("genesis checked",
		slog.Bool("fresh", fresh),
		slog.Int("tokens", len(genesis.Tokens)),
		slog.String("backend", cfg.Backend))

	server := newServer(cfg, node, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("JSON-RPC server listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
