package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/shippo-platforms/internal/telemetry"
	"github.com/tournevent/shippo-platforms/pkg/shippo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP bridge exposing the Shippo client as a JSON API.
type Server struct {
	port     int
	client   *shippo.Client
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
	validate *validator.Validate
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance. Metrics are served from gatherer.
func New(cfg Config, client *shippo.Client, logger *otelzap.Logger, metrics *telemetry.Metrics, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		port:     cfg.Port,
		client:   client,
		logger:   logger,
		metrics:  metrics,
		gatherer: gatherer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Merchants
	mux.HandleFunc("GET /v1/merchants", s.handleListMerchants)
	mux.HandleFunc("POST /v1/merchants", s.handleCreateMerchant)
	mux.HandleFunc("PUT /v1/merchants/{merchant}", s.handleUpdateMerchant)
	mux.HandleFunc("POST /v1/users/{uid}/merchants", s.handleCreateMerchantForUser)
	mux.HandleFunc("PUT /v1/users/{uid}/merchants/{merchant}", s.handleUpdateMerchantForUser)

	// Carrier accounts
	mux.HandleFunc("GET /v1/merchants/{merchant}/carrier_accounts", s.handleListCarriers)
	mux.HandleFunc("POST /v1/merchants/{merchant}/carrier_accounts", s.handleCreateCarrierAccount)

	// Shipments, rates and labels
	mux.HandleFunc("GET /v1/merchants/{merchant}/shipments", s.handleListShipments)
	mux.HandleFunc("POST /v1/merchants/{merchant}/shipments", s.handleCreateShipment)
	mux.HandleFunc("GET /v1/merchants/{merchant}/shipments/{shipment}/rates/{currency}", s.handleGetRates)
	mux.HandleFunc("GET /v1/merchants/{merchant}/rates/{rate}", s.handleGetCarrierFromRate)
	mux.HandleFunc("GET /v1/merchants/{merchant}/transactions", s.handleListLabels)
	mux.HandleFunc("POST /v1/merchants/{merchant}/transactions", s.handleCreateLabel)

	// Tracking
	mux.HandleFunc("POST /v1/merchants/{merchant}/tracks", s.handleRegisterTrack)
	mux.HandleFunc("GET /v1/merchants/{merchant}/tracks/{carrier}/{number}", s.handleGetTrack)
	mux.HandleFunc("POST /v1/merchants/{merchant}/tracks/poll", s.handlePollTracks)

	// Addresses
	mux.HandleFunc("POST /v1/merchants/{merchant}/addresses/validate", s.handleValidateAddress)

	return s.instrument(mux)
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags each request with an id and records its route and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.RecordHTTP(route, strconv.Itoa(rec.status))
		}
		s.logger.Ctx(r.Context()).Debug("HTTP request",
			zap.String("request_id", requestID),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
