/*
handlers.go - HTTP handlers for the reservation engine

PURPOSE:
  Exposes the booking engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the engine. No business rules live here.

ENDPOINTS:
  Reservations:
    POST   /api/reservations            Reserve a vehicle
    GET    /api/reservations            List the requester's reservations
    GET    /api/reservations/{id}       Get one reservation
    PUT    /api/reservations/{id}       Modify (cancel + rebook)
    DELETE /api/reservations/{id}       Cancel

  Vehicles (fleet management):
    GET    /api/vehicles                List vehicles
    POST   /api/vehicles                Create/replace a vehicle
    GET    /api/vehicles/{id}           Get a vehicle
    PUT    /api/vehicles/{id}           Update a vehicle
    DELETE /api/vehicles/{id}           Remove a vehicle

  Admin:
    GET    /api/admin/reservations      List every reservation
    POST   /api/admin/expire            Run the expiry sweep now
    POST   /api/admin/recompute-counters  Rebuild day counters

IDENTITY:
  The requester arrives as the X-Requester-ID header: an opaque identifier
  already authenticated upstream. X-Admin: true marks administrative calls
  (ownership override on cancel). Authorization itself is an upstream
  concern, not enforced here.

ERROR HANDLING:
  Engine errors map onto HTTP status codes:
  - 400: validation failures
  - 403: forbidden (not the owner)
  - 404: missing vehicle or reservation
  - 409: booking conflict, invalid lifecycle state
  - 503: high contention (client should retry later)
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/unicalrent/booking-engine/booking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *booking.Engine
	Store  booking.TxStore
}

// NewHandler creates a handler around an engine.
func NewHandler(engine *booking.Engine) *Handler {
	return &Handler{Engine: engine, Store: engine.Store}
}

const (
	headerRequester = "X-Requester-ID"
	headerAdmin     = "X-Admin"
)

func requesterFrom(r *http.Request) booking.RequesterID {
	return booking.RequesterID(r.Header.Get(headerRequester))
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get(headerAdmin) == "true"
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	requester := requesterFrom(r)
	if requester == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing %s header", headerRequester))
		return
	}

	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	res, err := h.Engine.Reserve(r.Context(), booking.ReserveInput{
		VehicleID:   booking.VehicleID(req.VehicleID),
		RequesterID: requester,
		Start:       req.Start,
		End:         req.End,
		Note:        req.Note,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

// GetReservation handles GET /api/reservations/{id}.
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := booking.ReservationID(chi.URLParam(r, "id"))
	res, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(res))
}

// ListReservations handles GET /api/reservations (scoped to the requester).
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	requester := requesterFrom(r)
	if requester == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing %s header", headerRequester))
		return
	}

	rs, err := h.Engine.ListByRequester(r.Context(), requester)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(rs))
}

// ModifyReservation handles PUT /api/reservations/{id}.
func (h *Handler) ModifyReservation(w http.ResponseWriter, r *http.Request) {
	id := booking.ReservationID(chi.URLParam(r, "id"))

	var req ModifyReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	res, err := h.Engine.Modify(r.Context(), id, requesterFrom(r), isAdmin(r), req.Start, req.End)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(res))
}

// CancelReservation handles DELETE /api/reservations/{id}.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := booking.ReservationID(chi.URLParam(r, "id"))

	if err := h.Engine.Cancel(r.Context(), id, requesterFrom(r), isAdmin(r)); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VEHICLE HANDLERS
// =============================================================================

// ListVehicles handles GET /api/vehicles.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Store.ListVehicles(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]VehicleDTO, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, toVehicleDTO(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetVehicle handles GET /api/vehicles/{id}.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id := booking.VehicleID(chi.URLParam(r, "id"))
	v, ok, err := h.Store.GetVehicle(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("vehicle %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(v))
}

// SaveVehicle handles POST /api/vehicles and PUT /api/vehicles/{id}.
func (h *Handler) SaveVehicle(w http.ResponseWriter, r *http.Request) {
	var req VehicleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		req.ID = id
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("vehicle id is required"))
		return
	}

	rate, err := decimal.NewFromString(req.HourlyRate)
	if err != nil || rate.IsNegative() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid hourly_rate %q", req.HourlyRate))
		return
	}

	v := booking.Vehicle{
		ID:         booking.VehicleID(req.ID),
		Make:       req.Make,
		Model:      req.Model,
		Plate:      req.Plate,
		Seats:      req.Seats,
		HourlyRate: rate,
		Active:     req.Active,
	}
	if err := h.Store.SaveVehicle(r.Context(), v); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleDTO(v))
}

// DeleteVehicle handles DELETE /api/vehicles/{id}.
func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id := booking.VehicleID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteVehicle(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListAllReservations handles GET /api/admin/reservations.
func (h *Handler) ListAllReservations(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Engine.ListAll(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(rs))
}

// ExpireNow handles POST /api/admin/expire: the on-demand expiry sweep.
func (h *Handler) ExpireNow(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.ExpireDue(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpireResponse{Expired: n})
}

// RecomputeCounters handles POST /api/admin/recompute-counters.
func (h *Handler) RecomputeCounters(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RecomputeAllCounters(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// writeEngineError maps engine error taxonomy onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, booking.ErrBookingConflict), errors.Is(err, booking.ErrInvalidState):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, booking.ErrHighContention):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, booking.ErrInterrupted):
		writeError(w, http.StatusRequestTimeout, err)
	default:
		log.Printf("[API] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
	}
}
