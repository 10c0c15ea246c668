package shippo

import (
	"strings"
)

// APIVersion is sent with every request in the SHIPPO-API-VERSION header.
const APIVersion = "2018-02-08"

// Mode selects between the provider's test and live behaviour.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// IsTest reports whether the mode carries the test flag.
func (m Mode) IsTest() bool {
	return strings.Contains(strings.ToLower(string(m)), string(ModeTest))
}

// Test tracking values accepted by the provider in test mode.
const (
	TrackingPreTransit = "SHIPPO_PRE_TRANSIT"
	TrackingTransit    = "SHIPPO_TRANSIT"
	TrackingDelivered  = "SHIPPO_DELIVERED"
	TrackingReturned   = "SHIPPO_RETURNED"
	TrackingFailure    = "SHIPPO_FAILURE"
	TrackingUnknown    = "SHIPPO_UNKNOWN"
)

// TestTrackingStatuses lists the tracking numbers that simulate each status in test mode.
var TestTrackingStatuses = []string{
	TrackingPreTransit,
	TrackingTransit,
	TrackingDelivered,
	TrackingReturned,
	TrackingFailure,
	TrackingUnknown,
}

// ValidTestTrackingStatus reports whether s is one of TestTrackingStatuses.
func ValidTestTrackingStatus(s string) bool {
	for _, v := range TestTrackingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Settings are the externally stored values a Client is built from.
type Settings struct {
	APIURL         string
	APIKey         string
	Mode           Mode
	EnableLog      bool
	TrackingStatus string // substituted for tracking numbers in test mode
	TrackingNumber string // used when TrackingStatus is empty
}

// SettingsProvider supplies Settings. The host platform's config store implements it.
type SettingsProvider interface {
	Settings() Settings
}

// StaticSettings is a SettingsProvider returning fixed values.
type StaticSettings Settings

// Settings implements SettingsProvider.
func (s StaticSettings) Settings() Settings {
	return Settings(s)
}

// Credentials are the resolved, immutable values used for every call.
type Credentials struct {
	BaseURL            string
	APIKey             string
	Mode               Mode
	EnableLog          bool
	TestTrackingNumber string
}

// ResolveCredentials validates s and returns the Credentials it describes.
// An empty URL or key yields ErrMissingCredentials.
func ResolveCredentials(s Settings) (Credentials, error) {
	creds := Credentials{
		BaseURL:            strings.TrimSpace(s.APIURL),
		APIKey:             strings.TrimSpace(s.APIKey),
		Mode:               s.Mode,
		EnableLog:          s.EnableLog,
		TestTrackingNumber: s.TrackingStatus,
	}
	if creds.TestTrackingNumber == "" {
		creds.TestTrackingNumber = s.TrackingNumber
	}
	if creds.BaseURL == "" || creds.APIKey == "" {
		return creds, NewError("resolve", CodeMissingCredentials, "api url or api key is empty")
	}
	return creds, nil
}
