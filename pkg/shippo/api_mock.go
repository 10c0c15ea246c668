package shippo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing and offline use.
// It records every request it receives.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnDo func(ctx context.Context, req *Request) (*Response, error)

	mu    sync.Mutex
	calls []Request
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Calls returns a copy of the requests received so far.
func (m *MockAPIClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Do records req and returns a canned response shaped like the provider's.
func (m *MockAPIClient) Do(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, *req)
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, NewError(req.Operation, CodeTransport, "request failed").WithCause(ctx.Err())
		}
	}

	if m.SimulateErrors {
		return nil, NewError(req.Operation, CodeTransport, "simulated API error")
	}

	if m.OnDo != nil {
		return m.OnDo(ctx, req)
	}

	return NewResponse(req.ExpectedStatus(), cannedPayload(req)), nil
}

// NewResponse builds a Response from a payload, as if decoded from the wire.
func NewResponse(status int, data map[string]any) *Response {
	raw, _ := json.Marshal(data)
	return &Response{StatusCode: status, Raw: raw, Data: data}
}

func cannedPayload(req *Request) map[string]any {
	segments := strings.Split(strings.Trim(req.Endpoint, "/"), "/")
	last := segments[len(segments)-1]
	now := time.Now().UTC().Format(time.RFC3339)

	if req.Method == http.MethodGet && isListing(last) {
		return map[string]any{"next": nil, "previous": nil, "results": []any{}}
	}

	switch {
	case len(segments) <= 2:
		obj := map[string]any{
			"object_id":      "mch_" + shortID(),
			"object_created": now,
		}
		if in, ok := req.Body.(MerchantInput); ok {
			obj["email"] = in.Email
			obj["first_name"] = in.FirstName
			obj["last_name"] = in.LastName
			obj["merchant_name"] = in.MerchantName
		}
		return obj
	case last == "new":
		carrier := ""
		if in, ok := req.Body.(CarrierAccountInput); ok {
			carrier = in.Carrier
		}
		return map[string]any{
			"object_id": "ca_" + shortID(),
			"carrier":   carrier,
			"active":    true,
		}
	case (len(segments) == 5 || len(segments) == 6) && segments[2] == "shipments" && segments[4] == "rates":
		return map[string]any{"results": []any{mockRate("usps", "Priority Mail", "7.35")}}
	case len(segments) == 4 && segments[2] == "rates":
		return mockRate("usps", "Priority Mail", "7.35")
	case last == "shipments":
		return map[string]any{
			"object_id":     "shp_" + shortID(),
			"status":        "SUCCESS",
			"object_status": "SUCCESS",
			"rates":         []any{mockRate("usps", "Priority Mail", "7.35")},
		}
	case last == "transactions":
		return map[string]any{
			"object_id":             "txn_" + shortID(),
			"status":                "SUCCESS",
			"tracking_number":       "9205590164917312751089",
			"label_url":             "https://shippo-delivery.s3.amazonaws.com/mock-label.pdf",
			"tracking_url_provider": "https://tools.usps.com/go/TrackConfirmAction?tLabels=9205590164917312751089",
			"messages":              []any{},
		}
	case last == "addresses":
		return map[string]any{
			"object_id":          "adr_" + shortID(),
			"is_complete":        true,
			"validation_results": map[string]any{"is_valid": true, "messages": []any{}},
		}
	default:
		return mockTrack(req)
	}
}

func isListing(last string) bool {
	switch last {
	case "merchants", "carrier_accounts", "shipments", "transactions":
		return true
	}
	return false
}

func mockRate(provider, service, amount string) map[string]any {
	return map[string]any{
		"object_id":      "rate_" + shortID(),
		"provider":       provider,
		"servicelevel":   map[string]any{"name": service, "token": "usps_priority"},
		"amount":         amount,
		"currency":       "USD",
		"estimated_days": 2,
	}
}

func mockTrack(req *Request) map[string]any {
	carrier, number := TestCarrier, TrackingTransit
	if in, ok := req.Body.(TrackInput); ok {
		carrier, number = in.Carrier, in.TrackingNumber
	} else if segments := strings.Split(strings.Trim(req.Endpoint, "/"), "/"); len(segments) == 5 {
		carrier, number = segments[3], segments[4]
	}
	return map[string]any{
		"carrier":         carrier,
		"tracking_number": number,
		"tracking_status": map[string]any{
			"status":      "TRANSIT",
			"substatus":   nil,
			"status_date": time.Now().UTC().Format(time.RFC3339),
			"location":    map[string]any{"city": "San Francisco", "state": "CA", "country": "US"},
		},
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

var _ APIClient = (*MockAPIClient)(nil)
