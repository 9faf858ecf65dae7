package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultResourceID is the single device this scheduler manages.
	DefaultResourceID = "device-001"
	// SlotDuration is fixed; bookings cannot choose their own length.
	SlotDuration = time.Hour

	IntentAvailability  = "availability"
	IntentBookingResult = "booking_result"

	ActionConfirm = "confirm"
	ActionCancel  = "cancel"

	ReasonSlotReserved     = "Requested timeslot is already reserved."
	ReasonNotFound         = "Reservation not found for session."
	ReasonAlreadyCancelled = "Reservation already cancelled."
	NoteAlreadyConfirmed   = "Reservation already confirmed for this session."
)

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithResourceID(resourceID string) Option {
	return func(s *Scheduler) {
		if resourceID != "" {
			s.resourceID = resourceID
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// Scheduler is an in-memory reservation table for one device with hourly slots.
// Every public method runs under a single mutex, so each check, book or cancel
// is indivisible with respect to the others.
type Scheduler struct {
	mu           sync.Mutex
	reservations map[string]*Reservation
	busy         map[int64]string // slot start (unix seconds) -> confirmed reservation id

	resourceID string
	newID      func() string
	logger     zerolog.Logger
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		reservations: make(map[string]*Reservation, 16),
		busy:         make(map[int64]string, 16),
		resourceID:   DefaultResourceID,
		newID:        uuid.NewString,
		logger:       log.Logger.With().Str("component", "scheduler").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NormalizeSlot converts t to UTC and truncates it to the top of its hour.
func NormalizeSlot(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
}

// CheckAvailability reports whether the slot containing start is free. It never mutates state.
func (s *Scheduler) CheckAvailability(start time.Time) AvailabilityResult {
	slotStart := NormalizeSlot(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.confirmedAt(slotStart); existing != nil {
		s.logger.Debug().
			Str("event", IntentAvailability).
			Bool("available", false).
			Time("slot_start", slotStart).
			Msg("slot unavailable")
		view := existing.clone()
		return AvailabilityResult{
			Intent:      IntentAvailability,
			Available:   false,
			Reason:      ReasonSlotReserved,
			Reservation: &view,
		}
	}

	s.logger.Debug().
		Str("event", IntentAvailability).
		Bool("available", true).
		Time("slot_start", slotStart).
		Msg("slot available")
	return AvailabilityResult{
		Intent:    IntentAvailability,
		Available: true,
		Proposal: &Proposal{
			ResourceID: s.resourceID,
			StartTime:  slotStart,
			EndTime:    slotStart.Add(SlotDuration),
		},
	}
}

// BookReservation confirms the slot containing start for sessionID.
// Re-booking a slot the same session already holds returns the existing reservation.
func (s *Scheduler) BookReservation(sessionID string, start time.Time) BookingResult {
	slotStart := NormalizeSlot(start)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.confirmedAt(slotStart); existing != nil {
		if existing.SessionID == sessionID {
			s.logger.Debug().
				Str("event", "booking").
				Bool("success", true).
				Str("reservation_id", existing.ID).
				Str("session_id", sessionID).
				Msg("reservation already exists")
			view := existing.clone()
			return BookingResult{
				Intent:      IntentBookingResult,
				Action:      ActionConfirm,
				Success:     true,
				Reservation: &view,
				Note:        NoteAlreadyConfirmed,
			}
		}
		s.logger.Debug().
			Str("event", "booking").
			Bool("success", false).
			Time("slot_start", slotStart).
			Str("session_id", sessionID).
			Msg("booking failed: slot busy")
		return BookingResult{
			Intent:  IntentBookingResult,
			Action:  ActionConfirm,
			Success: false,
			Reason:  ReasonSlotReserved,
		}
	}

	record := &Reservation{
		ID:         s.uniqueID(),
		SessionID:  sessionID,
		ResourceID: s.resourceID,
		Start:      slotStart,
		End:        slotStart.Add(SlotDuration),
		Status:     StatusConfirmed,
	}
	s.reservations[record.ID] = record
	s.busy[slotStart.Unix()] = record.ID

	s.logger.Debug().
		Str("event", "booking").
		Bool("success", true).
		Str("reservation_id", record.ID).
		Str("session_id", sessionID).
		Msg("reservation confirmed")

	view := record.clone()
	return BookingResult{
		Intent:      IntentBookingResult,
		Action:      ActionConfirm,
		Success:     true,
		Reservation: &view,
	}
}

// CancelReservation cancels reservationID if it belongs to sessionID.
// A reservation owned by another session is reported as not found.
func (s *Scheduler) CancelReservation(reservationID, sessionID string) BookingResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.reservations[reservationID]
	if !ok || record.SessionID != sessionID {
		s.logger.Debug().
			Str("event", "booking").
			Str("action", ActionCancel).
			Bool("success", false).
			Str("reservation_id", reservationID).
			Str("session_id", sessionID).
			Msg("cancel failed: not found")
		return BookingResult{
			Intent:  IntentBookingResult,
			Action:  ActionCancel,
			Success: false,
			Reason:  ReasonNotFound,
		}
	}

	if record.Status == StatusCancelled {
		view := record.clone()
		return BookingResult{
			Intent:      IntentBookingResult,
			Action:      ActionCancel,
			Success:     false,
			Reason:      ReasonAlreadyCancelled,
			Reservation: &view,
		}
	}

	record.Status = StatusCancelled
	if id, ok := s.busy[record.Start.Unix()]; ok && id == record.ID {
		delete(s.busy, record.Start.Unix())
	}

	s.logger.Debug().
		Str("event", "booking").
		Str("action", ActionCancel).
		Bool("success", true).
		Str("reservation_id", reservationID).
		Str("session_id", sessionID).
		Msg("reservation cancelled")

	view := record.clone()
	return BookingResult{
		Intent:      IntentBookingResult,
		Action:      ActionCancel,
		Success:     true,
		Reservation: &view,
	}
}

// Reservation returns a copy of the reservation with the given id.
func (s *Scheduler) Reservation(reservationID string) (Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.reservations[reservationID]
	if !ok {
		return Reservation{}, false
	}
	return record.clone(), true
}

// caller must hold s.mu
func (s *Scheduler) confirmedAt(slotStart time.Time) *Reservation {
	id, ok := s.busy[slotStart.Unix()]
	if !ok {
		return nil
	}
	record, ok := s.reservations[id]
	if !ok || record.Status != StatusConfirmed {
		return nil
	}
	return record
}

// caller must hold s.mu
func (s *Scheduler) uniqueID() string {
	for {
		id := s.newID()
		if _, taken := s.reservations[id]; !taken && id != "" {
			return id
		}
	}
}
