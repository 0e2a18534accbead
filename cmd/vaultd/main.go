package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"privacy-vault/internal/api"
	"privacy-vault/internal/attestation"
	"privacy-vault/internal/chain"
	"privacy-vault/internal/config"
	"privacy-vault/internal/domain"
	"privacy-vault/internal/inco"
	"privacy-vault/internal/observability"
	"privacy-vault/internal/storage"
	"privacy-vault/internal/storage/memory"
	"privacy-vault/internal/storage/migrations"
	"privacy-vault/internal/storage/postgres"
	"privacy-vault/internal/vault"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultd",
		Short:        "Confidential position and privacy-routing service",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().String("rpc-endpoint", "", "Solana RPC endpoint")
	serveCmd.Flags().String("ws-endpoint", "", "Solana websocket endpoint for confirmations")
	serveCmd.Flags().String("inco-endpoint", "", "Inco Lightning covalidator endpoint")
	serveCmd.Flags().String("postgres-dsn", "", "Postgres DSN for the split journal")
	serveCmd.Flags().Bool("use-memory", false, "use the in-memory split journal")
	serveCmd.Flags().String("listen-addr", ":8080", "API listen address")
	serveCmd.Flags().String("metrics-addr", ":9090", "metrics listen address")
	serveCmd.Flags().String("split-threshold", "1000", "amounts below this are never split")
	serveCmd.Flags().Int("max-split-parts", 5, "maximum sub-deposits per split plan")
	serveCmd.Flags().String("min-split-amount", "100", "minimum amount per sub-deposit")
	serveCmd.Flags().Duration("split-delay", 30*time.Second, "delay between sub-deposit submissions")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("")

	ledger := chain.NewClient(cfg.RPCEndpoint, metrics, logger)
	confirmer := chain.NewConfirmer(ledger, cfg.WSEndpoint, metrics, logger)

	network := inco.NewHTTPClient(cfg.IncoEndpoint)
	codec := inco.NewCodec(network, metrics, logger)

	manager := vault.NewManager(ledger, metrics, logger)
	verifier := attestation.NewBuilder(ledger, confirmer, metrics, logger)

	journal, cleanup, err := newJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	splitCfg := domain.SplitConfig{
		SplitThreshold:     cfg.SplitThreshold,
		MaxSplitParts:      cfg.MaxSplitParts,
		MinSplitAmount:     cfg.MinSplitAmount,
		DelayBetweenSplits: cfg.SplitDelay,
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	server := api.NewServer(manager, codec, ledger, confirmer, verifier, journal, splitCfg, metrics, rng, logger)

	apiSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", observability.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.ListenAddr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
	return nil
}

func newJournal(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.SplitPlanStore, func(), error) {
	if cfg.UseMemory {
		logger.Info("using in-memory split journal")
		return memory.NewSplitPlanStore(), func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("using postgres split journal")
	return postgres.NewSplitPlanStore(pool), pool.Close, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
