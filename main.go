package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tournevent/shippo-platforms/internal/server"
	"go.uber.org/zap"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	EnvFile string
	JQ      string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "shippo-platforms",
		Short:        "Shippo Platforms bridge - merchants, shipments, labels and tracking",
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.EnvFile, "env-file", "", "Load environment variables from this .env file first")
	root.PersistentFlags().StringVar(&flags.JQ, "jq", "", "JQ expression to filter JSON output")

	root.AddCommand(
		newServeCmd(flags),
		newMerchantsCmd(flags),
		newAccountsCmd(flags),
		newCarriersCmd(flags),
		newShipmentsCmd(flags),
		newRatesCmd(flags),
		newLabelsCmd(flags),
		newTracksCmd(flags),
		newAddressesCmd(flags),
	)
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}
}

func runServe(cmd *cobra.Command, flags *globalFlags) error {
	ctx := cmd.Context()

	// Load configuration
	cfg, err := loadConfig(flags.EnvFile)
	if err != nil {
		return err
	}

	// Initialize telemetry
	logger, err := initLogger(cfg, "stdout")
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer, tracerShutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
	} else {
		defer tracerShutdown(context.Background())
	}

	metrics := initMetrics(prometheus.DefaultRegisterer)
	client := initClient(cfg, logger, tracer, metrics)

	logger.Info("Starting Shippo Platforms bridge",
		zap.Int("port", cfg.Port),
		zap.String("version", cfg.Version),
		zap.String("mode", cfg.ShippoMode),
		zap.Bool("mock", cfg.ShippoUseMock),
	)

	// Start HTTP server
	srv := server.New(server.Config{Port: cfg.Port}, client, logger, metrics, prometheus.DefaultGatherer)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
