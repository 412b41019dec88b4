package handler

import (
	"log/slog"
	"net/http"

	"fleetline/internal/domain"
	"fleetline/internal/fleet"
)

// FleetMetrics counts the write-side fleet traffic. nil disables it.
type FleetMetrics interface {
	PositionReportInc(channel string)
	FlagUpdateInc(flag string)
}

// FleetHandler accepts periodic position and status reports.
type FleetHandler struct {
	state   *fleet.State
	metrics FleetMetrics
	logger  *slog.Logger
}

func NewFleetHandler(state *fleet.State, m FleetMetrics, logger *slog.Logger) *FleetHandler {
	return &FleetHandler{state: state, metrics: m, logger: logger}
}

type positionRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type flagRequest struct {
	Value bool `json:"value"`
}

// ReportVehiclePosition handles POST /v1/vehicles/{id}/position.
func (h *FleetHandler) ReportVehiclePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.state.ReportVehiclePosition(r.Context(), r.PathValue("id"), req.Lat, req.Lon); err != nil {
		respondDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.PositionReportInc(domain.ChannelVehicleLocation)
	}
	w.WriteHeader(http.StatusAccepted)
}

// ReportPassengerPosition handles POST /v1/passengers/{id}/position.
func (h *FleetHandler) ReportPassengerPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.state.ReportPassengerPosition(r.Context(), r.PathValue("id"), req.Lat, req.Lon); err != nil {
		respondDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.PositionReportInc(domain.ChannelPassengerLocation)
	}
	w.WriteHeader(http.StatusAccepted)
}

// ReportCapacity handles POST /v1/vehicles/{id}/capacity.
func (h *FleetHandler) ReportCapacity(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.state.ReportCapacity(r.Context(), r.PathValue("id"), req.Value); err != nil {
		respondDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.FlagUpdateInc("full")
	}
	w.WriteHeader(http.StatusAccepted)
}

// ReportAlarm handles POST /v1/vehicles/{id}/alarm.
func (h *FleetHandler) ReportAlarm(w http.ResponseWriter, r *http.Request) {
	var req flagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.state.ReportAlarm(r.Context(), r.PathValue("id"), req.Value); err != nil {
		respondDomainError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.FlagUpdateInc("alarm")
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetVehicle handles GET /v1/vehicles/{id}. Reading a vehicle that
// never reported a position triggers the geolocation fallback.
func (h *FleetHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.state.Vehicle(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, vehicle)
}

// GetPassenger handles GET /v1/passengers/{id}.
func (h *FleetHandler) GetPassenger(w http.ResponseWriter, r *http.Request) {
	p, err := h.state.Passenger(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
