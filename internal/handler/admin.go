package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"fleetline/internal/domain"
	"fleetline/internal/routes"
	"fleetline/internal/shifts"
	"fleetline/internal/stops"
)

// AdminHandler carries the administrative write surface: the stop
// catalog, routes (with companion derivation) and shifts.
type AdminHandler struct {
	stops    *stops.Catalog
	routes   *routes.Store
	shifts   *shifts.Store
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAdminHandler(c *stops.Catalog, r *routes.Store, s *shifts.Store, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		stops:    c,
		routes:   r,
		shifts:   s,
		validate: validator.New(),
		logger:   logger,
	}
}

type stopRequest struct {
	ID   string  `json:"id" validate:"required"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `json:"lon" validate:"gte=-180,lte=180"`
}

type routeRequest struct {
	ID    string   `json:"id"`
	Name  string   `json:"name" validate:"required"`
	Stops []string `json:"stops" validate:"dive,required"`
}

type legRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
	Date  string `json:"date" validate:"required"`
}

type shiftRequest struct {
	ID        string      `json:"id"`
	RouteID   string      `json:"route_id"`
	VehicleID string      `json:"vehicle_id"`
	Normal    *legRequest `json:"normal" validate:"omitempty"`
	Reverse   *legRequest `json:"reverse" validate:"omitempty"`
}

func (h *AdminHandler) checkPayload(w http.ResponseWriter, payload interface{}) bool {
	if err := h.validate.Struct(payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return false
	}
	return true
}

func (h *AdminHandler) CreateStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if !decodeBody(w, r, &req) || !h.checkPayload(w, req) {
		return
	}

	stop := domain.Stop{ID: req.ID, Name: req.Name, Lat: req.Lat, Lon: req.Lon}
	if err := h.stops.Put(r.Context(), stop); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, stop)
}

func (h *AdminHandler) UpdateStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req stopRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ID = id
	if !h.checkPayload(w, req) {
		return
	}

	stop := domain.Stop{ID: id, Name: req.Name, Lat: req.Lat, Lon: req.Lon}
	if err := h.stops.Put(r.Context(), stop); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stop)
}

func (h *AdminHandler) DeleteStop(w http.ResponseWriter, r *http.Request) {
	if err := h.stops.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !decodeBody(w, r, &req) || !h.checkPayload(w, req) {
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "route id is required")
		return
	}

	route := domain.Route{ID: req.ID, Name: req.Name, Stops: req.Stops}
	if err := h.routes.Add(r.Context(), route); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, route)
}

func (h *AdminHandler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req routeRequest
	if !decodeBody(w, r, &req) || !h.checkPayload(w, req) {
		return
	}

	route := domain.Route{ID: id, Name: req.Name, Stops: req.Stops}
	if err := h.routes.Update(r.Context(), id, route); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, route)
}

func (h *AdminHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	if err := h.routes.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req shiftRequest
	if !decodeBody(w, r, &req) || !h.checkPayload(w, req) {
		return
	}

	stored, err := h.shifts.Add(r.Context(), shiftFromRequest(req))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, stored)
}

func (h *AdminHandler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req shiftRequest
	if !decodeBody(w, r, &req) || !h.checkPayload(w, req) {
		return
	}

	shift := shiftFromRequest(req)
	shift.ID = id
	if err := h.shifts.Update(r.Context(), id, shift); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shift)
}

func (h *AdminHandler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	if err := h.shifts.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveShiftLeg clears one directional leg:
// DELETE /v1/shifts/{id}/legs/{direction} with direction normal|reverse.
func (h *AdminHandler) RemoveShiftLeg(w http.ResponseWriter, r *http.Request) {
	dir, ok := domain.ParseDirection(r.PathValue("direction"))
	if !ok {
		respondError(w, http.StatusBadRequest, "direction must be normal or reverse")
		return
	}

	if err := h.shifts.RemoveLeg(r.Context(), r.PathValue("id"), dir); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func shiftFromRequest(req shiftRequest) domain.Shift {
	shift := domain.Shift{
		ID:        req.ID,
		RouteID:   req.RouteID,
		VehicleID: req.VehicleID,
	}
	if req.Normal != nil {
		shift.Normal = &domain.ShiftLeg{Start: req.Normal.Start, End: req.Normal.End, Date: req.Normal.Date}
	}
	if req.Reverse != nil {
		shift.Reverse = &domain.ShiftLeg{Start: req.Reverse.Start, End: req.Reverse.End, Date: req.Reverse.Date}
	}
	return shift
}
