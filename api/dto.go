/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Transport-level validation (parseable JSON, presence) is done in handlers;
  business validation (interval rules, cutoffs) lives in the engine and is
  not duplicated here. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/unicalrent/booking-engine/booking"
)

// =============================================================================
// RESERVATIONS
// =============================================================================

// ReservationDTO represents a reservation in API responses.
type ReservationDTO struct {
	ID          string    `json:"id"`
	VehicleID   string    `json:"vehicle_id"`
	RequesterID string    `json:"requester_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	State       string    `json:"state"`
	Cost        string    `json:"cost"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toReservationDTO(r booking.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:          string(r.ID),
		VehicleID:   string(r.VehicleID),
		RequesterID: string(r.RequesterID),
		Start:       r.Start,
		End:         r.End,
		State:       string(r.State),
		Cost:        r.Cost.StringFixed(2),
		Note:        r.Note,
		CreatedAt:   r.CreatedAt,
	}
}

func toReservationDTOs(rs []booking.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationDTO(r))
	}
	return out
}

// CreateReservationRequest is the body of POST /api/reservations.
type CreateReservationRequest struct {
	VehicleID string    `json:"vehicle_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Note      string    `json:"note"`
}

// ModifyReservationRequest is the body of PUT /api/reservations/{id}.
type ModifyReservationRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// =============================================================================
// VEHICLES
// =============================================================================

// VehicleDTO represents a vehicle in API requests and responses.
type VehicleDTO struct {
	ID         string `json:"id"`
	Make       string `json:"make"`
	Model      string `json:"model"`
	Plate      string `json:"plate"`
	Seats      int    `json:"seats"`
	HourlyRate string `json:"hourly_rate"`
	Active     bool   `json:"active"`
}

func toVehicleDTO(v booking.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:         string(v.ID),
		Make:       v.Make,
		Model:      v.Model,
		Plate:      v.Plate,
		Seats:      v.Seats,
		HourlyRate: v.HourlyRate.StringFixed(2),
		Active:     v.Active,
	}
}

// =============================================================================
// ADMIN / ERRORS
// =============================================================================

// ExpireResponse reports how many reservations an expiry sweep transitioned.
type ExpireResponse struct {
	Expired int `json:"expired"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
