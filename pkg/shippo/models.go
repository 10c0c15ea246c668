package shippo

import (
	"strconv"
)

// DefaultCarrier is registered for every merchant created through CreateMerchantForUser.
const DefaultCarrier = "usps"

// TestCarrier replaces the caller's carrier on tracking calls in test mode.
const TestCarrier = "shippo"

// LabelFileType is the format of a purchased label.
type LabelFileType string

const (
	LabelPNG       LabelFileType = "PNG"
	LabelPNG23x75  LabelFileType = "PNG_2.3x7.5"
	LabelPDF       LabelFileType = "PDF"
	LabelPDF23x75  LabelFileType = "PDF_2.3x7.5"
	LabelPDF4x6    LabelFileType = "PDF_4x6"
	LabelPDF4x8    LabelFileType = "PDF_4x8"
	LabelPDFA4     LabelFileType = "PDF_A4"
	LabelPDFA6     LabelFileType = "PDF_A6"
	LabelZPLII     LabelFileType = "ZPLII"
)

// MerchantInput is the payload for creating or updating a merchant.
type MerchantInput struct {
	Email        string `json:"email" validate:"required,email"`
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	MerchantName string `json:"merchant_name" validate:"required"`
}

// Address is a postal address as accepted by the shipments and addresses endpoints.
type Address struct {
	Name          string `json:"name,omitempty"`
	Company       string `json:"company,omitempty"`
	Street1       string `json:"street1,omitempty"`
	Street2       string `json:"street2,omitempty"`
	Street3       string `json:"street3,omitempty"`
	StreetNo      string `json:"street_no,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Zip           string `json:"zip,omitempty"`
	Country       string `json:"country,omitempty"` // ISO 3166-1 alpha-2
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	IsResidential *bool  `json:"is_residential,omitempty"`
	Metadata      string `json:"metadata,omitempty"`
	Validate      bool   `json:"validate,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Parcel describes one package of a shipment. Dimensions are decimal strings.
type Parcel struct {
	Length       string `json:"length,omitempty"`
	Width        string `json:"width,omitempty"`
	Height       string `json:"height,omitempty"`
	DistanceUnit string `json:"distance_unit,omitempty"` // cm, in, ft, mm, m, yd
	Weight       string `json:"weight,omitempty"`
	MassUnit     string `json:"mass_unit,omitempty"` // g, oz, lb, kg
	Template     string `json:"template,omitempty"`
	Metadata     string `json:"metadata,omitempty"`
}

// ShipmentInput is the payload for creating a shipment.
type ShipmentInput struct {
	AddressFrom Address  `json:"address_from"`
	AddressTo   Address  `json:"address_to"`
	Parcels     []Parcel `json:"parcels"`
}

// CarrierAccountInput is the payload for registering a carrier account.
type CarrierAccountInput struct {
	Carrier    string         `json:"carrier"`
	Parameters map[string]any `json:"parameters"`
}

// TransactionInput is the payload for purchasing a label.
type TransactionInput struct {
	Rate          string        `json:"rate"`
	LabelFileType LabelFileType `json:"label_file_type"`
	Async         bool          `json:"async"`
}

// TrackInput is the payload for registering a tracking webhook.
type TrackInput struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

// TrackRef identifies a shipment to poll in TrackAll.
type TrackRef struct {
	Carrier        string `json:"carrier" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"required"`
}

// Page selects one page of a listing.
type Page struct {
	Number  int
	Results int
}

// Default page sizes for the listing endpoints.
const (
	DefaultMerchantPageSize = 50
	DefaultLabelPageSize    = 10
)

func (p Page) params(defaultResults int) Params {
	results := p.Results
	if results <= 0 {
		results = defaultResults
	}
	number := p.Number
	if number < 0 {
		number = 0
	}
	return Params{}.
		Add("page", strconv.Itoa(number)).
		Add("results", strconv.Itoa(results))
}
