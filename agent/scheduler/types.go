package scheduler

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Reservation is one booked hour. Status only ever moves from confirmed to cancelled.
type Reservation struct {
	ID         string
	SessionID  string
	ResourceID string
	Start      time.Time
	End        time.Time
	Status     Status
}

type reservationView struct {
	ReservationID string `json:"reservation_id"`
	ResourceID    string `json:"resource_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        Status `json:"status"`
}

// MarshalJSON renders the public view; the owning session id stays internal.
func (r Reservation) MarshalJSON() ([]byte, error) {
	return json.Marshal(reservationView{
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		StartTime:     r.Start.UTC().Format(time.RFC3339),
		EndTime:       r.End.UTC().Format(time.RFC3339),
		Status:        r.Status,
	})
}

func (r *Reservation) clone() Reservation {
	return *r
}

type Proposal struct {
	ResourceID string    `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type AvailabilityResult struct {
	Intent         string       `json:"intent"`
	ActionRequired bool         `json:"action_required"`
	Available      bool         `json:"available"`
	Reason         string       `json:"reason,omitempty"`
	Reservation    *Reservation `json:"reservation,omitempty"`
	Proposal       *Proposal    `json:"proposal,omitempty"`
}

// BookingResult is returned by both booking and cancellation.
// Conflicts are reported with Success=false and a Reason, never as errors.
type BookingResult struct {
	Intent         string       `json:"intent"`
	ActionRequired bool         `json:"action_required"`
	Action         string       `json:"action"`
	Success        bool         `json:"success"`
	Reason         string       `json:"reason,omitempty"`
	Note           string       `json:"note,omitempty"`
	Reservation    *Reservation `json:"reservation,omitempty"`
}
