// Package shippo provides a client for the Shippo Platforms API: merchant and
// carrier accounts, shipments, rates, labels, address validation and tracking.
package shippo

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Operation names, used for logging, metrics and spans.
const (
	OpCreateMerchant       = "create_merchant"
	OpUpdateMerchant       = "update_merchant"
	OpCreateCarrierAccount = "create_carrier_account"
	OpCreateShipment       = "create_shipment"
	OpGetRates             = "get_rates"
	OpCreateLabel          = "create_label"
	OpGetCarrierFromRate   = "get_carrier_from_rate"
	OpRegisterTrackStatus  = "register_track_status"
	OpGetTrackStatus       = "get_track_status"
	OpListMerchants        = "list_merchants"
	OpListMerchantCarriers = "list_merchant_carriers"
	OpListShipments        = "list_merchant_shipments"
	OpListLabels           = "list_merchant_labels"
	OpValidateAddress      = "validate_address"
	OpCreateMerchantUser   = "create_merchant_for_user"
	OpUpdateMerchantUser   = "update_merchant_for_user"
)

// Config holds transport configuration for New.
type Config struct {
	Timeout         time.Duration
	RateLimit       float64
	RateBurst       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	UseMock         bool // When true, uses mock API client
}

// UserDirectory resolves platform users to the display name used for their merchant.
type UserDirectory interface {
	DisplayName(ctx context.Context, uid string) (string, error)
}

// UserDirectoryFunc adapts a function to UserDirectory.
type UserDirectoryFunc func(ctx context.Context, uid string) (string, error)

// DisplayName implements UserDirectory.
func (f UserDirectoryFunc) DisplayName(ctx context.Context, uid string) (string, error) {
	return f(ctx, uid)
}

// Recorder receives per-call metrics.
type Recorder interface {
	RecordRequest(operation, method, status string, duration float64)
	RecordError(operation, errorType string)
}

// Option configures optional Client collaborators.
type Option func(*Client)

// WithUserDirectory sets the directory used by the *ForUser operations.
func WithUserDirectory(users UserDirectory) Option {
	return func(c *Client) {
		c.users = users
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// Client is the Shippo Platforms client.
// Credentials are resolved once at construction and never change afterwards.
// API calls are delegated to the underlying APIClient (mock or HTTP).
type Client struct {
	creds     Credentials
	credsErr  error
	apiClient APIClient
	users     UserDirectory
	metrics   Recorder
	validate  *validator.Validate
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new client from the provider's current settings.
// If cfg.UseMock is true, it uses a mock API client.
// Otherwise, it uses the real HTTP API client.
func New(settings SettingsProvider, cfg Config, logger *otelzap.Logger, tracer trace.Tracer, opts ...Option) *Client {
	creds, err := ResolveCredentials(settings.Settings())

	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			Credentials:     creds,
			Timeout:         cfg.Timeout,
			RateLimit:       cfg.RateLimit,
			RateBurst:       cfg.RateBurst,
			BreakerFailures: cfg.BreakerFailures,
			BreakerTimeout:  cfg.BreakerTimeout,
		}, logger)
	}

	return newClient(creds, err, apiClient, logger, tracer, opts)
}

// NewWithAPIClient creates a new client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(settings SettingsProvider, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer, opts ...Option) *Client {
	creds, err := ResolveCredentials(settings.Settings())
	return newClient(creds, err, apiClient, logger, tracer, opts)
}

func newClient(creds Credentials, credsErr error, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer, opts []Option) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("shippo")
	}
	c := &Client{
		creds:     creds,
		credsErr:  credsErr,
		apiClient: apiClient,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		tracer:    tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if credsErr != nil {
		logger.Warn("Shippo API credentials are missing; calls will be skipped until they are configured")
	}
	return c
}

// TestMode reports whether the client was configured in test mode.
func (c *Client) TestMode() bool {
	return c.creds.Mode.IsTest()
}

// CreateMerchant creates a merchant account.
func (c *Client) CreateMerchant(ctx context.Context, in MerchantInput) (*Response, error) {
	if err := c.validateInput(ctx, OpCreateMerchant, in); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpCreateMerchant,
		Method:    http.MethodPost,
		Endpoint:  "merchants",
		Body:      in,
	})
}

// UpdateMerchant replaces the merchant's account details.
func (c *Client) UpdateMerchant(ctx context.Context, merchantID string, in MerchantInput) (*Response, error) {
	if err := c.require(ctx, OpUpdateMerchant, "merchant_id", merchantID); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpUpdateMerchant,
		Method:    http.MethodPut,
		Endpoint:  EndpointPath("merchants", merchantID),
		Body:      in,
	})
}

// CreateCarrierAccount registers a new carrier account for the merchant.
func (c *Client) CreateCarrierAccount(ctx context.Context, merchantID, carrier string) (*Response, error) {
	if err := c.require(ctx, OpCreateCarrierAccount, "merchant_id", merchantID, "carrier", carrier); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpCreateCarrierAccount,
		Method:    http.MethodPost,
		Endpoint:  EndpointPath("merchants", merchantID, "carrier_accounts", "register", "new"),
		Body: CarrierAccountInput{
			Carrier:    carrier,
			Parameters: map[string]any{},
		},
	})
}

// CreateShipment creates a shipment; the response carries its rates.
func (c *Client) CreateShipment(ctx context.Context, merchantID string, from, to Address, parcels []Parcel) (*Response, error) {
	if err := c.require(ctx, OpCreateShipment, "merchant_id", merchantID); err != nil {
		return nil, err
	}
	if parcels == nil {
		parcels = []Parcel{}
	}
	return c.send(ctx, &Request{
		Operation: OpCreateShipment,
		Method:    http.MethodPost,
		Endpoint:  EndpointPath("merchants", merchantID, "shipments"),
		Body: ShipmentInput{
			AddressFrom: from,
			AddressTo:   to,
			Parcels:     parcels,
		},
	})
}

// GetRates lists the shipment's rates in the given currency.
func (c *Client) GetRates(ctx context.Context, merchantID, shipmentID, currency string) (*Response, error) {
	if err := c.require(ctx, OpGetRates, "merchant_id", merchantID, "shipment_id", shipmentID); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpGetRates,
		Method:    http.MethodGet,
		Endpoint:  EndpointPath("merchants", merchantID, "shipments", shipmentID, "rates", currency),
	})
}

// CreateLabel purchases a label for the rate. Labels are always generated synchronously.
func (c *Client) CreateLabel(ctx context.Context, merchantID, rateID string, fileType LabelFileType) (*Response, error) {
	if err := c.require(ctx, OpCreateLabel, "merchant_id", merchantID, "rate_id", rateID); err != nil {
		return nil, err
	}
	if fileType == "" {
		fileType = LabelPDF
	}
	return c.send(ctx, &Request{
		Operation: OpCreateLabel,
		Method:    http.MethodPost,
		Endpoint:  EndpointPath("merchants", merchantID, "transactions"),
		Body: TransactionInput{
			Rate:          rateID,
			LabelFileType: fileType,
			Async:         false,
		},
	})
}

// GetCarrierFromRate fetches a rate, which names its carrier.
func (c *Client) GetCarrierFromRate(ctx context.Context, merchantID, rateID string) (*Response, error) {
	if err := c.require(ctx, OpGetCarrierFromRate, "merchant_id", merchantID, "rate_id", rateID); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpGetCarrierFromRate,
		Method:    http.MethodGet,
		Endpoint:  EndpointPath("merchants", merchantID, "rates", rateID),
	})
}

// RegisterTrackStatus registers a tracking number for status updates.
// In test mode the carrier and number are replaced by the test values.
func (c *Client) RegisterTrackStatus(ctx context.Context, merchantID, carrier, trackingNumber string) (*Response, error) {
	carrier, trackingNumber = c.trackingTarget(carrier, trackingNumber)
	if err := c.require(ctx, OpRegisterTrackStatus, "merchant_id", merchantID); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpRegisterTrackStatus,
		Method:    http.MethodPost,
		Endpoint:  EndpointPath("merchants", merchantID, "tracks"),
		Body: TrackInput{
			Carrier:        carrier,
			TrackingNumber: trackingNumber,
		},
	})
}

// GetTrackStatus fetches the current tracking status.
// In test mode the carrier and number are replaced by the test values.
func (c *Client) GetTrackStatus(ctx context.Context, merchantID, carrier, trackingNumber string) (*Response, error) {
	carrier, trackingNumber = c.trackingTarget(carrier, trackingNumber)
	if err := c.require(ctx, OpGetTrackStatus,
		"merchant_id", merchantID,
		"carrier", carrier,
		"tracking_number", trackingNumber,
	); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpGetTrackStatus,
		Method:    http.MethodGet,
		Endpoint:  EndpointPath("merchants", merchantID, "tracks", carrier, trackingNumber),
	})
}

// ListMerchants lists merchants. A zero Page means page 0 with 50 results.
func (c *Client) ListMerchants(ctx context.Context, page Page) (*Response, error) {
	return c.send(ctx, &Request{
		Operation: OpListMerchants,
		Method:    http.MethodGet,
		Endpoint:  "merchants",
		Query:     page.params(DefaultMerchantPageSize),
	})
}

// ListMerchantCarriers lists the merchant's carrier accounts.
func (c *Client) ListMerchantCarriers(ctx context.Context, merchantID string) (*Response, error) {
	if err := c.require(ctx, OpListMerchantCarriers, "merchant_id", merchantID); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpListMerchantCarriers,
		Method:    http.MethodGet,
		Endpoint:  EndpointPath("merchants", merchantID, "carrier_accounts"),
	})
}

// ListMerchantShipments lists the merchant's shipments.
func (c *Client) ListMerchantShipments(ctx context.Context, merchantID string) (*Response, error) {
	if err := c.require(ctx, OpListShipments, "merchant_id", merchantID); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpListShipments,
		Method:    http.MethodGet,
		Endpoint:  EndpointPath("merchants", merchantID, "shipments"),
	})
}

// ListMerchantLabels lists the merchant's purchased labels. A zero Page means
// page 0 with 10 results.
func (c *Client) ListMerchantLabels(ctx context.Context, merchantID string, page Page) (*Response, error) {
	if err := c.require(ctx, OpListLabels, "merchant_id", merchantID); err != nil {
		return nil, err
	}
	return c.send(ctx, &Request{
		Operation: OpListLabels,
		Method:    http.MethodGet,
		Endpoint:  EndpointPath("merchants", merchantID, "transactions"),
		Query:     page.params(DefaultLabelPageSize),
	})
}

// ValidateAddress reports whether the provider considers the address both
// complete and valid.
func (c *Client) ValidateAddress(ctx context.Context, merchantID string, addr Address) (bool, error) {
	if err := c.require(ctx, OpValidateAddress, "merchant_id", merchantID); err != nil {
		return false, err
	}
	if addr.IsZero() {
		c.logMissing(ctx, OpValidateAddress, []string{"address"})
		return false, missingParameter(OpValidateAddress, "address")
	}

	resp, err := c.send(ctx, &Request{
		Operation: OpValidateAddress,
		Method:    http.MethodPost,
		Endpoint:  EndpointPath("merchants", merchantID, "addresses"),
		Body:      addr,
	})
	if err != nil {
		return false, err
	}

	results := resp.Object("validation_results")
	if results == nil {
		return false, nil
	}
	valid, _ := results["is_valid"].(bool)
	return resp.Bool("is_complete") && valid, nil
}

// CreateMerchantForUser creates a merchant for a platform user, named after the
// user's display name, and registers the default carrier account for it.
// It returns the new merchant's object id.
func (c *Client) CreateMerchantForUser(ctx context.Context, uid, email, merchantName string) (string, error) {
	in, err := c.merchantForUser(ctx, OpCreateMerchantUser, uid, email, merchantName)
	if err != nil {
		return "", err
	}

	resp, err := c.CreateMerchant(ctx, in)
	if err != nil {
		return "", err
	}

	merchantID := resp.ObjectID()
	if merchantID == "" {
		msg := "merchant response has no object_id: " + string(resp.Raw)
		if msgs := resp.Messages(); len(msgs) > 0 {
			msg = "merchant response has no object_id: " + msgs[0].Text
		}
		c.logger.Ctx(ctx).Error("Merchant was not created",
			zap.String("operation", OpCreateMerchantUser),
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(resp.Raw)),
		)
		return "", NewError(OpCreateMerchantUser, CodeUnexpectedStatus, msg).WithStatusCode(resp.StatusCode)
	}

	if _, err := c.CreateCarrierAccount(ctx, merchantID, DefaultCarrier); err != nil {
		c.logger.Ctx(ctx).Error("Failed to register default carrier account",
			zap.String("merchant_id", merchantID),
			zap.String("carrier", DefaultCarrier),
			zap.Error(err),
		)
	}
	return merchantID, nil
}

// UpdateMerchantForUser updates a merchant from a platform user's display name.
func (c *Client) UpdateMerchantForUser(ctx context.Context, uid, merchantID, email, merchantName string) (*Response, error) {
	in, err := c.merchantForUser(ctx, OpUpdateMerchantUser, uid, email, merchantName)
	if err != nil {
		return nil, err
	}
	return c.UpdateMerchant(ctx, merchantID, in)
}

func (c *Client) merchantForUser(ctx context.Context, op, uid, email, merchantName string) (MerchantInput, error) {
	if err := c.require(ctx, op, "uid", uid); err != nil {
		return MerchantInput{}, err
	}
	if c.users == nil {
		return MerchantInput{}, NewError(op, CodeMissingParameter, "no user directory configured").WithCause(ErrMissingParameter)
	}
	name, err := c.users.DisplayName(ctx, uid)
	if err != nil {
		c.logger.Ctx(ctx).Error("User lookup failed", zap.String("uid", uid), zap.Error(err))
		return MerchantInput{}, err
	}
	return MerchantInput{
		Email:        email,
		FirstName:    name,
		LastName:     name,
		MerchantName: merchantName,
	}, nil
}

// trackingTarget applies the test-mode substitution.
func (c *Client) trackingTarget(carrier, trackingNumber string) (string, string) {
	if c.creds.Mode.IsTest() {
		return TestCarrier, c.creds.TestTrackingNumber
	}
	return carrier, trackingNumber
}

// require checks name/value pairs and fails with ErrMissingParameter naming
// every empty value.
func (c *Client) require(ctx context.Context, op string, pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	c.logMissing(ctx, op, missing)
	return missingParameter(op, missing...)
}

func (c *Client) validateInput(ctx context.Context, op string, in any) error {
	err := c.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(op, CodeMissingParameter, "invalid input").WithCause(err)
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	c.logMissing(ctx, op, missing)
	return missingParameter(op, missing...).WithCause(err)
}

func (c *Client) logMissing(ctx context.Context, op string, params []string) {
	c.logger.Ctx(ctx).Error("Missing required parameters; request not sent",
		zap.String("operation", op),
		zap.Strings("parameters", params),
	)
}

// send runs one request through the API client with tracing and metrics.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	if c.credsErr != nil {
		c.logger.Ctx(ctx).Warn("Shippo API credentials are missing",
			zap.String("operation", req.Operation),
		)
		if c.metrics != nil {
			c.metrics.RecordError(req.Operation, CodeMissingCredentials)
		}
		return nil, c.credsErr
	}

	ctx, span := c.tracer.Start(ctx, "shippo."+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("shippo.operation", req.Operation),
			attribute.String("http.request.method", req.Method),
			attribute.String("shippo.endpoint", req.Endpoint),
			attribute.Bool("shippo.test_mode", c.creds.Mode.IsTest()),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.apiClient.Do(ctx, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if c.metrics != nil {
			c.metrics.RecordRequest(req.Operation, req.Method, "error", elapsed)
			c.metrics.RecordError(req.Operation, errorCode(err))
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if c.metrics != nil {
		c.metrics.RecordRequest(req.Operation, req.Method, http.StatusText(resp.StatusCode), elapsed)
	}
	return resp, nil
}

func errorCode(err error) string {
	var shErr *Error
	if errors.As(err, &shErr) {
		return shErr.Code
	}
	return "UNKNOWN"
}
