package shippo_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shippo-platforms/pkg/shippo"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var liveSettings = shippo.Settings{
	APIURL: "https://api.goshippo.com",
	APIKey: "shippo_live_key",
	Mode:   shippo.ModeLive,
}

var testSettings = shippo.Settings{
	APIURL:         "https://api.goshippo.com",
	APIKey:         "shippo_test_key",
	Mode:           shippo.ModeTest,
	TrackingStatus: shippo.TrackingDelivered,
}

func newTestClient(settings shippo.Settings, mockAPI *shippo.MockAPIClient, opts ...shippo.Option) *shippo.Client {
	logger := otelzap.New(zap.NewNop())
	return shippo.NewWithAPIClient(shippo.StaticSettings(settings), mockAPI, logger, nil, opts...)
}

func TestClient_CreateMerchant(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(liveSettings, mockAPI)

	resp, err := client.CreateMerchant(context.Background(), shippo.MerchantInput{
		Email:        "jane@example.com",
		FirstName:    "Jane",
		LastName:     "Doe",
		MerchantName: "Jane's Shop",
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.ObjectID())
	assert.Equal(t, "Jane's Shop", resp.String("merchant_name"))

	calls := mockAPI.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "merchants", calls[0].Endpoint)
}

func TestClient_CreateMerchant_InvalidInput(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(liveSettings, mockAPI)

	_, err := client.CreateMerchant(context.Background(), shippo.MerchantInput{Email: "not-an-email"})

	assert.ErrorIs(t, err, shippo.ErrMissingParameter)
	assert.Empty(t, mockAPI.Calls())
}

func TestClient_Endpoints(t *testing.T) {
	ctx := context.Background()
	from := shippo.Address{Name: "A", Street1: "1 Main St", City: "Austin", State: "TX", Zip: "78701", Country: "US"}
	to := shippo.Address{Name: "B", Street1: "2 Elm St", City: "Boston", State: "MA", Zip: "02108", Country: "US"}

	tests := []struct {
		name     string
		call     func(c *shippo.Client) error
		method   string
		endpoint string
		query    shippo.Params
	}{
		{
			name: "update merchant",
			call: func(c *shippo.Client) error {
				_, err := c.UpdateMerchant(ctx, "m1", shippo.MerchantInput{MerchantName: "New"})
				return err
			},
			method: http.MethodPut, endpoint: "merchants/m1",
		},
		{
			name: "create carrier account",
			call: func(c *shippo.Client) error {
				_, err := c.CreateCarrierAccount(ctx, "m1", "usps")
				return err
			},
			method: http.MethodPost, endpoint: "merchants/m1/carrier_accounts/register/new",
		},
		{
			name: "create shipment",
			call: func(c *shippo.Client) error {
				_, err := c.CreateShipment(ctx, "m1", from, to, []shippo.Parcel{{Weight: "2", MassUnit: "lb"}})
				return err
			},
			method: http.MethodPost, endpoint: "merchants/m1/shipments",
		},
		{
			name: "get rates",
			call: func(c *shippo.Client) error {
				_, err := c.GetRates(ctx, "m1", "s1", "USD")
				return err
			},
			method: http.MethodGet, endpoint: "merchants/m1/shipments/s1/rates/USD",
		},
		{
			name: "create label",
			call: func(c *shippo.Client) error {
				_, err := c.CreateLabel(ctx, "m1", "r1", shippo.LabelPDF4x6)
				return err
			},
			method: http.MethodPost, endpoint: "merchants/m1/transactions",
		},
		{
			name: "carrier from rate",
			call: func(c *shippo.Client) error {
				_, err := c.GetCarrierFromRate(ctx, "m1", "r1")
				return err
			},
			method: http.MethodGet, endpoint: "merchants/m1/rates/r1",
		},
		{
			name: "register track",
			call: func(c *shippo.Client) error {
				_, err := c.RegisterTrackStatus(ctx, "m1", "usps", "9400")
				return err
			},
			method: http.MethodPost, endpoint: "merchants/m1/tracks",
		},
		{
			name: "get track",
			call: func(c *shippo.Client) error {
				_, err := c.GetTrackStatus(ctx, "m1", "usps", "9400")
				return err
			},
			method: http.MethodGet, endpoint: "merchants/m1/tracks/usps/9400",
		},
		{
			name: "list merchants defaults",
			call: func(c *shippo.Client) error {
				_, err := c.ListMerchants(ctx, shippo.Page{})
				return err
			},
			method: http.MethodGet, endpoint: "merchants",
			query: shippo.Params{{Key: "page", Value: "0"}, {Key: "results", Value: "50"}},
		},
		{
			name: "list merchants page",
			call: func(c *shippo.Client) error {
				_, err := c.ListMerchants(ctx, shippo.Page{Number: 2, Results: 5})
				return err
			},
			method: http.MethodGet, endpoint: "merchants",
			query: shippo.Params{{Key: "page", Value: "2"}, {Key: "results", Value: "5"}},
		},
		{
			name: "list carriers",
			call: func(c *shippo.Client) error {
				_, err := c.ListMerchantCarriers(ctx, "m1")
				return err
			},
			method: http.MethodGet, endpoint: "merchants/m1/carrier_accounts",
		},
		{
			name: "list shipments",
			call: func(c *shippo.Client) error {
				_, err := c.ListMerchantShipments(ctx, "m1")
				return err
			},
			method: http.MethodGet, endpoint: "merchants/m1/shipments",
		},
		{
			name: "list labels defaults",
			call: func(c *shippo.Client) error {
				_, err := c.ListMerchantLabels(ctx, "m1", shippo.Page{})
				return err
			},
			method: http.MethodGet, endpoint: "merchants/m1/transactions",
			query: shippo.Params{{Key: "page", Value: "0"}, {Key: "results", Value: "10"}},
		},
		{
			name: "validate address",
			call: func(c *shippo.Client) error {
				_, err := c.ValidateAddress(ctx, "m1", from)
				return err
			},
			method: http.MethodPost, endpoint: "merchants/m1/addresses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := shippo.NewMockAPIClient()
			client := newTestClient(liveSettings, mockAPI)

			require.NoError(t, tt.call(client))

			calls := mockAPI.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.method, calls[0].Method)
			assert.Equal(t, tt.endpoint, calls[0].Endpoint)
			assert.Equal(t, tt.query, calls[0].Query)
		})
	}
}

func TestClient_MissingParametersSendNothing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(c *shippo.Client) error
	}{
		{"update merchant", func(c *shippo.Client) error {
			_, err := c.UpdateMerchant(ctx, "", shippo.MerchantInput{})
			return err
		}},
		{"carrier account without carrier", func(c *shippo.Client) error {
			_, err := c.CreateCarrierAccount(ctx, "m1", "")
			return err
		}},
		{"shipment", func(c *shippo.Client) error {
			_, err := c.CreateShipment(ctx, "", shippo.Address{}, shippo.Address{}, nil)
			return err
		}},
		{"rates without shipment", func(c *shippo.Client) error {
			_, err := c.GetRates(ctx, "m1", "", "USD")
			return err
		}},
		{"label without rate", func(c *shippo.Client) error {
			_, err := c.CreateLabel(ctx, "m1", "", shippo.LabelPDF)
			return err
		}},
		{"carrier from rate", func(c *shippo.Client) error {
			_, err := c.GetCarrierFromRate(ctx, "", "r1")
			return err
		}},
		{"register track", func(c *shippo.Client) error {
			_, err := c.RegisterTrackStatus(ctx, "", "usps", "1")
			return err
		}},
		{"get track without number", func(c *shippo.Client) error {
			_, err := c.GetTrackStatus(ctx, "m1", "usps", "")
			return err
		}},
		{"carriers", func(c *shippo.Client) error {
			_, err := c.ListMerchantCarriers(ctx, " ")
			return err
		}},
		{"shipments", func(c *shippo.Client) error {
			_, err := c.ListMerchantShipments(ctx, "")
			return err
		}},
		{"labels", func(c *shippo.Client) error {
			_, err := c.ListMerchantLabels(ctx, "", shippo.Page{})
			return err
		}},
		{"validate address without address", func(c *shippo.Client) error {
			_, err := c.ValidateAddress(ctx, "m1", shippo.Address{})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := shippo.NewMockAPIClient()
			client := newTestClient(liveSettings, mockAPI)

			err := tt.call(client)

			assert.ErrorIs(t, err, shippo.ErrMissingParameter)
			assert.True(t, shippo.IsNoData(err))
			assert.Empty(t, mockAPI.Calls())
		})
	}
}

func TestClient_MissingCredentials(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	core, logs := observer.New(zapcore.WarnLevel)
	client := shippo.NewWithAPIClient(shippo.StaticSettings{}, mockAPI, otelzap.New(zap.New(core)), nil)

	_, err := client.ListMerchants(context.Background(), shippo.Page{})

	assert.ErrorIs(t, err, shippo.ErrMissingCredentials)
	assert.Empty(t, mockAPI.Calls())
	assert.Equal(t, 1, logs.FilterMessage("Shippo API credentials are missing").Len())
}

func TestClient_MissingParameterLogged(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	core, logs := observer.New(zapcore.ErrorLevel)
	client := shippo.NewWithAPIClient(shippo.StaticSettings(liveSettings), mockAPI, otelzap.New(zap.New(core)), nil)

	_, err := client.GetRates(context.Background(), "", "", "USD")
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, shippo.OpGetRates, entries[0].ContextMap()["operation"])
	assert.Equal(t, []interface{}{"merchant_id", "shipment_id"}, entries[0].ContextMap()["parameters"])
}

func TestClient_CreateLabelBody(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(liveSettings, mockAPI)

	resp, err := client.CreateLabel(context.Background(), "m1", "r1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.String("label_url"))

	body, ok := mockAPI.Calls()[0].Body.(shippo.TransactionInput)
	require.True(t, ok)
	assert.Equal(t, "r1", body.Rate)
	assert.Equal(t, shippo.LabelPDF, body.LabelFileType)
	assert.False(t, body.Async)
}

func TestClient_CarrierAccountBody(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(liveSettings, mockAPI)

	resp, err := client.CreateCarrierAccount(context.Background(), "m1", "fedex")
	require.NoError(t, err)
	assert.Equal(t, "fedex", resp.String("carrier"))

	body, ok := mockAPI.Calls()[0].Body.(shippo.CarrierAccountInput)
	require.True(t, ok)
	assert.NotNil(t, body.Parameters)
	assert.Empty(t, body.Parameters)
}

func TestClient_TestModeTracking(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(testSettings, mockAPI)
	require.True(t, client.TestMode())

	resp, err := client.GetTrackStatus(context.Background(), "m1", "usps", "9400111899223")
	require.NoError(t, err)
	assert.Equal(t, shippo.TestCarrier, resp.String("carrier"))
	assert.Equal(t, shippo.TrackingDelivered, resp.String("tracking_number"))

	_, err = client.RegisterTrackStatus(context.Background(), "m1", "", "")
	require.NoError(t, err)

	calls := mockAPI.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "merchants/m1/tracks/shippo/SHIPPO_DELIVERED", calls[0].Endpoint)
	assert.Equal(t, shippo.TrackInput{Carrier: "shippo", TrackingNumber: shippo.TrackingDelivered}, calls[1].Body)
}

func TestClient_ValidateAddress(t *testing.T) {
	addr := shippo.Address{Street1: "1 Main St", City: "Austin", Country: "US"}

	tests := []struct {
		name    string
		payload map[string]any
		want    bool
	}{
		{"complete and valid", map[string]any{"is_complete": true, "validation_results": map[string]any{"is_valid": true}}, true},
		{"incomplete", map[string]any{"is_complete": false, "validation_results": map[string]any{"is_valid": true}}, false},
		{"invalid", map[string]any{"is_complete": true, "validation_results": map[string]any{"is_valid": false}}, false},
		{"no results", map[string]any{"is_complete": true}, false},
		{"rejected", map[string]any{"detail": "bad request"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAPI := shippo.NewMockAPIClient()
			mockAPI.OnDo = func(ctx context.Context, req *shippo.Request) (*shippo.Response, error) {
				return shippo.NewResponse(http.StatusCreated, tt.payload), nil
			}
			client := newTestClient(liveSettings, mockAPI)

			ok, err := client.ValidateAddress(context.Background(), "m1", addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestClient_PostWithMessagesReturnsPayload(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	mockAPI.OnDo = func(ctx context.Context, req *shippo.Request) (*shippo.Response, error) {
		return shippo.NewResponse(http.StatusCreated, map[string]any{
			"object_id": "shp_1",
			"messages":  []any{map[string]any{"text": "Rate unavailable"}},
		}), nil
	}
	client := newTestClient(liveSettings, mockAPI)

	resp, err := client.CreateShipment(context.Background(), "m1", shippo.Address{Name: "A"}, shippo.Address{Name: "B"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "shp_1", resp.ObjectID())
	require.Len(t, resp.Messages(), 1)
	assert.Equal(t, "Rate unavailable", resp.Messages()[0].Text)
}

func TestClient_APIError(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(liveSettings, mockAPI)

	_, err := client.ListMerchantShipments(context.Background(), "m1")

	assert.ErrorIs(t, err, shippo.ErrTransport)
	assert.False(t, shippo.IsNoData(err))
}

func TestClient_CreateMerchantForUser(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	mockAPI.OnDo = func(ctx context.Context, req *shippo.Request) (*shippo.Response, error) {
		switch req.Endpoint {
		case "merchants":
			return shippo.NewResponse(http.StatusCreated, map[string]any{"object_id": "mch_1"}), nil
		case "merchants/mch_1/carrier_accounts/register/new":
			return shippo.NewResponse(http.StatusCreated, map[string]any{"object_id": "ca_1", "carrier": "usps"}), nil
		}
		return nil, errors.New("unexpected endpoint " + req.Endpoint)
	}
	users := shippo.UserDirectoryFunc(func(ctx context.Context, uid string) (string, error) {
		assert.Equal(t, "42", uid)
		return "Jane Doe", nil
	})
	client := newTestClient(liveSettings, mockAPI, shippo.WithUserDirectory(users))

	id, err := client.CreateMerchantForUser(context.Background(), "42", "jane@example.com", "Jane's Shop")

	require.NoError(t, err)
	assert.Equal(t, "mch_1", id)

	calls := mockAPI.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, shippo.MerchantInput{
		Email:        "jane@example.com",
		FirstName:    "Jane Doe",
		LastName:     "Jane Doe",
		MerchantName: "Jane's Shop",
	}, calls[0].Body)
	assert.Equal(t, shippo.CarrierAccountInput{Carrier: shippo.DefaultCarrier, Parameters: map[string]any{}}, calls[1].Body)
}

func TestClient_CreateMerchantForUser_NoObjectID(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	mockAPI.OnDo = func(ctx context.Context, req *shippo.Request) (*shippo.Response, error) {
		return shippo.NewResponse(http.StatusBadRequest, map[string]any{"email": []any{"taken"}}), nil
	}
	users := shippo.UserDirectoryFunc(func(ctx context.Context, uid string) (string, error) {
		return "Jane Doe", nil
	})
	client := newTestClient(liveSettings, mockAPI, shippo.WithUserDirectory(users))

	id, err := client.CreateMerchantForUser(context.Background(), "42", "jane@example.com", "Shop")

	assert.Empty(t, id)
	assert.ErrorIs(t, err, shippo.ErrUnexpectedStatus)
	assert.False(t, shippo.IsNoData(err))
	assert.Contains(t, err.Error(), "taken")

	var shippoErr *shippo.Error
	require.ErrorAs(t, err, &shippoErr)
	assert.Equal(t, http.StatusBadRequest, shippoErr.StatusCode)
	assert.Len(t, mockAPI.Calls(), 1)
}

func TestClient_CreateMerchantForUser_NoObjectIDCarriesMessage(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	mockAPI.OnDo = func(ctx context.Context, req *shippo.Request) (*shippo.Response, error) {
		return shippo.NewResponse(http.StatusCreated, map[string]any{
			"messages": []any{map[string]any{"text": "Merchant limit reached"}},
		}), nil
	}
	users := shippo.UserDirectoryFunc(func(ctx context.Context, uid string) (string, error) {
		return "Jane Doe", nil
	})
	client := newTestClient(liveSettings, mockAPI, shippo.WithUserDirectory(users))

	_, err := client.CreateMerchantForUser(context.Background(), "42", "jane@example.com", "Shop")

	assert.ErrorIs(t, err, shippo.ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "Merchant limit reached")
}

func TestClient_IdentifiersAreEscaped(t *testing.T) {
	ctx := context.Background()
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(liveSettings, mockAPI)

	_, err := client.GetTrackStatus(ctx, "m1", "usps", "123?token=x")
	require.NoError(t, err)
	_, err = client.ListMerchantShipments(ctx, "m1/../../other")
	require.NoError(t, err)

	calls := mockAPI.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "merchants/m1/tracks/usps/123%3Ftoken=x", calls[0].Endpoint)
	assert.Equal(t, "merchants/m1%2F..%2F..%2Fother/shipments", calls[1].Endpoint)
}

func TestClient_GetRatesWithoutCurrency(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(liveSettings, mockAPI)

	resp, err := client.GetRates(context.Background(), "m1", "s1", "")

	require.NoError(t, err)
	require.Len(t, resp.Results(), 1)
	assert.Equal(t, "usps", resp.Results()[0]["provider"])
	assert.Equal(t, "merchants/m1/shipments/s1/rates", mockAPI.Calls()[0].Endpoint)
}

func TestClient_CreateMerchantForUser_CarrierFailureKeepsMerchant(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	mockAPI.OnDo = func(ctx context.Context, req *shippo.Request) (*shippo.Response, error) {
		if req.Endpoint == "merchants" {
			return shippo.NewResponse(http.StatusCreated, map[string]any{"object_id": "mch_9"}), nil
		}
		return nil, shippo.NewError(req.Operation, shippo.CodeTransport, "down")
	}
	users := shippo.UserDirectoryFunc(func(ctx context.Context, uid string) (string, error) {
		return "Sam", nil
	})
	client := newTestClient(liveSettings, mockAPI, shippo.WithUserDirectory(users))

	id, err := client.CreateMerchantForUser(context.Background(), "7", "sam@example.com", "Sam's")

	require.NoError(t, err)
	assert.Equal(t, "mch_9", id)
}

func TestClient_CreateMerchantForUser_Errors(t *testing.T) {
	t.Run("empty uid", func(t *testing.T) {
		mockAPI := shippo.NewMockAPIClient()
		client := newTestClient(liveSettings, mockAPI)
		_, err := client.CreateMerchantForUser(context.Background(), "", "a@b.co", "Shop")
		assert.ErrorIs(t, err, shippo.ErrMissingParameter)
		assert.Empty(t, mockAPI.Calls())
	})

	t.Run("no directory", func(t *testing.T) {
		mockAPI := shippo.NewMockAPIClient()
		client := newTestClient(liveSettings, mockAPI)
		_, err := client.CreateMerchantForUser(context.Background(), "1", "a@b.co", "Shop")
		assert.ErrorIs(t, err, shippo.ErrMissingParameter)
	})

	t.Run("lookup fails", func(t *testing.T) {
		mockAPI := shippo.NewMockAPIClient()
		lookupErr := errors.New("user not found")
		users := shippo.UserDirectoryFunc(func(ctx context.Context, uid string) (string, error) {
			return "", lookupErr
		})
		client := newTestClient(liveSettings, mockAPI, shippo.WithUserDirectory(users))
		_, err := client.CreateMerchantForUser(context.Background(), "1", "a@b.co", "Shop")
		assert.ErrorIs(t, err, lookupErr)
		assert.Empty(t, mockAPI.Calls())
	})
}

func TestClient_UpdateMerchantForUser(t *testing.T) {
	mockAPI := shippo.NewMockAPIClient()
	users := shippo.UserDirectoryFunc(func(ctx context.Context, uid string) (string, error) {
		return "Jane Doe", nil
	})
	client := newTestClient(liveSettings, mockAPI, shippo.WithUserDirectory(users))

	_, err := client.UpdateMerchantForUser(context.Background(), "42", "mch_1", "jane@example.com", "Renamed")
	require.NoError(t, err)

	calls := mockAPI.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPut, calls[0].Method)
	assert.Equal(t, "merchants/mch_1", calls[0].Endpoint)
	assert.Equal(t, "Renamed", calls[0].Body.(shippo.MerchantInput).MerchantName)
}

type recordedMetric struct {
	operation, method, status string
}

type fakeRecorder struct {
	mu       sync.Mutex
	requests []recordedMetric
	errors   []string
}

func (f *fakeRecorder) RecordRequest(operation, method, status string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedMetric{operation, method, status})
}

func (f *fakeRecorder) RecordError(operation, errorType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, operation+":"+errorType)
}

func TestClient_RecordsMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	mockAPI := shippo.NewMockAPIClient()
	client := newTestClient(liveSettings, mockAPI, shippo.WithRecorder(rec))

	_, err := client.ListMerchants(context.Background(), shippo.Page{})
	require.NoError(t, err)

	mockAPI.SimulateErrors = true
	_, err = client.ListMerchants(context.Background(), shippo.Page{})
	require.Error(t, err)

	assert.Equal(t, []recordedMetric{
		{shippo.OpListMerchants, http.MethodGet, "OK"},
		{shippo.OpListMerchants, http.MethodGet, "error"},
	}, rec.requests)
	assert.Equal(t, []string{"list_merchants:TRANSPORT"}, rec.errors)
}
