package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tournevent/shippo-platforms/pkg/shippo"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type userMerchantRequest struct {
	Email        string `json:"email" validate:"required,email"`
	MerchantName string `json:"merchant_name" validate:"required"`
}

type carrierAccountRequest struct {
	Carrier string `json:"carrier" validate:"required"`
}

type labelRequest struct {
	Rate          string               `json:"rate" validate:"required"`
	LabelFileType shippo.LabelFileType `json:"label_file_type"`
}

type pollRequest struct {
	Refs  []shippo.TrackRef `json:"refs" validate:"required,min=1,dive"`
	Limit int               `json:"limit" validate:"gte=0,lte=32"`
}

type pollResult struct {
	Carrier        string         `json:"carrier"`
	TrackingNumber string         `json:"tracking_number"`
	Status         map[string]any `json:"status,omitempty"`
	Error          string         `json:"error,omitempty"`
}

func (s *Server) handleListMerchants(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	resp, err := s.client.ListMerchants(r.Context(), page)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleCreateMerchant(w http.ResponseWriter, r *http.Request) {
	var in shippo.MerchantInput
	if !s.decode(w, r, &in) {
		return
	}
	resp, err := s.client.CreateMerchant(r.Context(), in)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleUpdateMerchant(w http.ResponseWriter, r *http.Request) {
	var in shippo.MerchantInput
	if !s.decode(w, r, &in) {
		return
	}
	resp, err := s.client.UpdateMerchant(r.Context(), r.PathValue("merchant"), in)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleCreateMerchantForUser(w http.ResponseWriter, r *http.Request) {
	var in userMerchantRequest
	if !s.decodeValid(w, r, &in) {
		return
	}
	id, err := s.client.CreateMerchantForUser(r.Context(), r.PathValue("uid"), in.Email, in.MerchantName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"object_id": id})
}

func (s *Server) handleUpdateMerchantForUser(w http.ResponseWriter, r *http.Request) {
	var in userMerchantRequest
	if !s.decodeValid(w, r, &in) {
		return
	}
	resp, err := s.client.UpdateMerchantForUser(r.Context(), r.PathValue("uid"), r.PathValue("merchant"), in.Email, in.MerchantName)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleListCarriers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.client.ListMerchantCarriers(r.Context(), r.PathValue("merchant"))
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleCreateCarrierAccount(w http.ResponseWriter, r *http.Request) {
	var in carrierAccountRequest
	if !s.decodeValid(w, r, &in) {
		return
	}
	resp, err := s.client.CreateCarrierAccount(r.Context(), r.PathValue("merchant"), in.Carrier)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	resp, err := s.client.ListMerchantShipments(r.Context(), r.PathValue("merchant"))
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var in shippo.ShipmentInput
	if !s.decode(w, r, &in) {
		return
	}
	resp, err := s.client.CreateShipment(r.Context(), r.PathValue("merchant"), in.AddressFrom, in.AddressTo, in.Parcels)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	resp, err := s.client.GetRates(r.Context(), r.PathValue("merchant"), r.PathValue("shipment"), r.PathValue("currency"))
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleGetCarrierFromRate(w http.ResponseWriter, r *http.Request) {
	resp, err := s.client.GetCarrierFromRate(r.Context(), r.PathValue("merchant"), r.PathValue("rate"))
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	resp, err := s.client.ListMerchantLabels(r.Context(), r.PathValue("merchant"), page)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var in labelRequest
	if !s.decodeValid(w, r, &in) {
		return
	}
	resp, err := s.client.CreateLabel(r.Context(), r.PathValue("merchant"), in.Rate, in.LabelFileType)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleRegisterTrack(w http.ResponseWriter, r *http.Request) {
	var in shippo.TrackInput
	if !s.decode(w, r, &in) {
		return
	}
	resp, err := s.client.RegisterTrackStatus(r.Context(), r.PathValue("merchant"), in.Carrier, in.TrackingNumber)
	s.writeResult(w, r, resp, err)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	resp, err := s.client.GetTrackStatus(r.Context(), r.PathValue("merchant"), r.PathValue("carrier"), r.PathValue("number"))
	s.writeResult(w, r, resp, err)
}

func (s *Server) handlePollTracks(w http.ResponseWriter, r *http.Request) {
	var in pollRequest
	if !s.decodeValid(w, r, &in) {
		return
	}

	results, err := s.client.TrackAll(r.Context(), r.PathValue("merchant"), in.Refs, in.Limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]pollResult, len(results))
	for i, res := range results {
		out[i] = pollResult{
			Carrier:        res.Ref.Carrier,
			TrackingNumber: res.Ref.TrackingNumber,
		}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
			continue
		}
		out[i].Status = res.Response.Object("tracking_status")
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleValidateAddress(w http.ResponseWriter, r *http.Request) {
	var addr shippo.Address
	if !s.decode(w, r, &addr) {
		return
	}
	valid, err := s.client.ValidateAddress(r.Context(), r.PathValue("merchant"), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// decode reads a JSON body into v, answering 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// decodeValid is decode followed by struct validation.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if !s.decode(w, r, v) {
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: shippo.CodeMissingParameter})
		return false
	}
	return true
}

// writeResult relays the provider's status and raw payload.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, resp *shippo.Response, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Raw)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var shErr *shippo.Error
	if errors.As(err, &shErr) {
		body.Code = shErr.Code
	}

	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

// statusFor maps client failure classes to bridge status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shippo.ErrMissingCredentials):
		return http.StatusServiceUnavailable
	case errors.Is(err, shippo.ErrMissingParameter):
		return http.StatusBadRequest
	case errors.Is(err, shippo.ErrTransport),
		errors.Is(err, shippo.ErrUnexpectedStatus),
		errors.Is(err, shippo.ErrDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func pageFromQuery(r *http.Request) (shippo.Page, error) {
	var page shippo.Page
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("invalid page %q", v)
		}
		page.Number = n
	}
	if v := q.Get("results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("invalid results %q", v)
		}
		page.Results = n
	}
	return page, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
