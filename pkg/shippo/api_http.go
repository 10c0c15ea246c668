package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	creds      Credentials
	credsErr   error
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *otelzap.Logger
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	Credentials Credentials
	Timeout     time.Duration
	HTTPClient  *http.Client // overrides Timeout when set

	// RateLimit is the sustained requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	// BreakerFailures consecutive transport failures open the circuit for
	// BreakerTimeout. Zero disables the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig, logger *otelzap.Logger) *HTTPAPIClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &HTTPAPIClient{
		creds:      cfg.Credentials,
		httpClient: httpClient,
		logger:     logger,
	}
	if cfg.Credentials.BaseURL == "" || cfg.Credentials.APIKey == "" {
		c.credsErr = NewError("resolve", CodeMissingCredentials, "api url or api key is empty")
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.BreakerFailures > 0 {
		threshold := cfg.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:    "shippo",
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	return c
}

// Do sends req and interprets the response according to the per-method status contract:
// POST expects 201, GET and PUT expect 200. A POST answered with any other status still
// returns the decoded payload so callers can inspect provider validation errors.
func (c *HTTPAPIClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.credsErr != nil {
		c.logger.Ctx(ctx).Warn("Shippo API credentials are missing",
			zap.String("endpoint", req.Endpoint),
		)
		return nil, c.credsErr
	}

	payload, err := encodeBody(req)
	if err != nil {
		return nil, NewError(req.Operation, CodeTransport, "failed to marshal request body").WithCause(err)
	}

	url := EnforceHTTPS(AppendQuery(BuildEndpoint(c.creds.BaseURL, req.Endpoint), req.Query))

	resp, err := c.send(ctx, req.Method, url, payload)
	if err != nil {
		c.logger.Ctx(ctx).Error("Shippo API call failed",
			zap.String("endpoint", req.Endpoint),
			zap.String("data", string(payload)),
			zap.Error(err),
		)
		return nil, NewError(req.Operation, CodeTransport, "request failed").WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Ctx(ctx).Error("Shippo API response could not be read",
			zap.String("endpoint", req.Endpoint),
			zap.Error(err),
		)
		return nil, NewError(req.Operation, CodeTransport, "failed to read response body").
			WithStatusCode(resp.StatusCode).
			WithCause(err)
	}

	return c.interpret(ctx, req, payload, resp.StatusCode, raw)
}

// send performs the HTTP request with the fixed header set, honouring the
// rate limiter and circuit breaker when configured.
func (c *HTTPAPIClient) send(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	do := func() (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(httpReq)
		return c.httpClient.Do(httpReq)
	}

	if c.breaker == nil {
		return do()
	}
	return c.breaker.Execute(do)
}

func (c *HTTPAPIClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "ShippoToken "+c.creds.APIKey)
	req.Header.Set("SHIPPO-API-VERSION", APIVersion)
	req.Header.Set("Content-Type", "application/json")
}

// interpret applies the status contract to a received response.
func (c *HTTPAPIClient) interpret(ctx context.Context, req *Request, payload []byte, status int, raw []byte) (*Response, error) {
	log := c.logger.Ctx(ctx)
	expected := req.ExpectedStatus()

	if status != expected && req.Method != http.MethodPost {
		log.Error("Shippo API returned unexpected status",
			zap.String("endpoint", req.Endpoint),
			zap.Int("status", status),
			zap.Int("expected", expected),
		)
		return nil, NewError(req.Operation, CodeUnexpectedStatus, fmt.Sprintf("expected status %d", expected)).
			WithStatusCode(status)
	}

	resp := &Response{StatusCode: status, Raw: raw}
	if err := json.Unmarshal(raw, &resp.Data); err != nil {
		log.Error("Shippo API returned an invalid body",
			zap.String("endpoint", req.Endpoint),
			zap.Int("status", status),
			zap.Error(err),
		)
		return nil, NewError(req.Operation, CodeDecode, "failed to decode response").
			WithStatusCode(status).
			WithCause(err)
	}

	if status == expected {
		if msgs := resp.Messages(); len(msgs) > 0 {
			log.Error("Shippo API reported an error",
				zap.String("endpoint", req.Endpoint),
				zap.String("data", string(payload)),
				zap.String("message", msgs[0].Text),
			)
		}
	}

	c.logExchange(ctx, req.Endpoint, payload, raw)
	return resp, nil
}

// logExchange records the request/response pair when logging is enabled.
func (c *HTTPAPIClient) logExchange(ctx context.Context, endpoint string, payload, raw []byte) {
	if !c.creds.EnableLog {
		return
	}
	c.logger.Ctx(ctx).Info("Shippo API call",
		zap.String("endpoint", endpoint),
		zap.String("data", string(payload)),
		zap.String("result", string(raw)),
	)
}

// encodeBody serializes the request body. GET requests never carry one.
func encodeBody(req *Request) ([]byte, error) {
	if req.Method == http.MethodGet || req.Body == nil {
		return nil, nil
	}
	return json.Marshal(req.Body)
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
