package contract

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
	schedulerx "github.com/tanpawarit/device-reservation-agent/agent/scheduler"
)

// ReservationService is the scheduling surface the tools and direct actions operate on.
type ReservationService interface {
	CheckAvailability(start time.Time) schedulerx.AvailabilityResult
	BookReservation(sessionID string, start time.Time) schedulerx.BookingResult
	CancelReservation(reservationID, sessionID string) schedulerx.BookingResult
}

type ToolGateway interface {
	Infos() []*schema.ToolInfo
	Execute(ctx context.Context, turn TurnContext, reqs []ToolRequest) ([]ToolResult, error)
}
