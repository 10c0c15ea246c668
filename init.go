package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tournevent/shippo-platforms/internal/config"
	"github.com/tournevent/shippo-platforms/internal/telemetry"
	"github.com/tournevent/shippo-platforms/pkg/shippo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

func loadConfig(envFile string) (*config.Config, error) {
	return config.Load(envFile)
}

func initLogger(cfg *config.Config, output string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.LogLevel, cfg.ServiceName, output)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

func initMetrics(reg prometheus.Registerer) *telemetry.Metrics {
	return telemetry.NewMetrics(reg)
}

// initClient builds the Shippo client from configuration. Mock mode serves
// canned responses without network access.
func initClient(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer, metrics *telemetry.Metrics, opts ...shippo.Option) *shippo.Client {
	if metrics != nil {
		opts = append(opts, shippo.WithRecorder(metrics))
	}
	return shippo.New(cfg, cfg.ClientConfig(), logger, tracer, opts...)
}
