package scheduler

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		t.Fatalf("time.Parse(%q) error = %v", raw, err)
	}
	return ts
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("r-%d", n)
	}
}

func TestNormalizeSlot(t *testing.T) {
	t.Parallel()

	want := mustTime(t, "2025-03-01T09:00:00Z")
	for _, raw := range []string{"2025-03-01T09:15:00Z", "2025-03-01T09:45:00Z", "2025-03-01T17:59:59+08:00"} {
		if got := NormalizeSlot(mustTime(t, raw)); !got.Equal(want) {
			t.Fatalf("NormalizeSlot(%s) = %s, want %s", raw, got, want)
		}
	}

	other := NormalizeSlot(mustTime(t, "2025-03-01T10:00:01Z"))
	if other.Equal(want) {
		t.Fatalf("10:00:01 must normalize to a distinct slot, got %s", other)
	}
	if !other.Equal(mustTime(t, "2025-03-01T10:00:00Z")) {
		t.Fatalf("unexpected slot: %s", other)
	}
}

func TestCheckAvailabilityProposesHourSlot(t *testing.T) {
	t.Parallel()

	s := New()
	res := s.CheckAvailability(mustTime(t, "2025-03-01T09:15:00Z"))
	if !res.Available {
		t.Fatal("expected slot to be available")
	}
	if res.Proposal == nil {
		t.Fatal("expected a proposal")
	}
	if res.Proposal.ResourceID != DefaultResourceID {
		t.Fatalf("unexpected resource: %s", res.Proposal.ResourceID)
	}
	if !res.Proposal.StartTime.Equal(mustTime(t, "2025-03-01T09:00:00Z")) {
		t.Fatalf("unexpected start: %s", res.Proposal.StartTime)
	}
	if !res.Proposal.EndTime.Equal(mustTime(t, "2025-03-01T10:00:00Z")) {
		t.Fatalf("unexpected end: %s", res.Proposal.EndTime)
	}
}

func TestSlotExclusivityAcrossSessions(t *testing.T) {
	t.Parallel()

	s := New(WithIDGenerator(sequentialIDs()))
	first := s.BookReservation("session-a", mustTime(t, "2025-03-01T09:15:00Z"))
	if !first.Success {
		t.Fatalf("first booking failed: %+v", first)
	}

	second := s.BookReservation("session-b", mustTime(t, "2025-03-01T09:45:00Z"))
	if second.Success {
		t.Fatal("second session must not book an occupied slot")
	}
	if second.Reason != ReasonSlotReserved {
		t.Fatalf("unexpected reason: %q", second.Reason)
	}

	held, ok := s.Reservation(first.Reservation.ID)
	if !ok {
		t.Fatal("first reservation disappeared")
	}
	if held.Status != StatusConfirmed {
		t.Fatalf("first reservation status = %s, want confirmed", held.Status)
	}

	check := s.CheckAvailability(mustTime(t, "2025-03-01T09:30:00Z"))
	if check.Available {
		t.Fatal("slot must be reported unavailable")
	}
	if check.Reservation == nil || check.Reservation.ID != first.Reservation.ID {
		t.Fatalf("expected existing reservation in result, got %+v", check.Reservation)
	}
}

func TestBookReservationIdempotentForSameSession(t *testing.T) {
	t.Parallel()

	s := New()
	first := s.BookReservation("session-a", mustTime(t, "2025-03-01T09:00:00Z"))
	second := s.BookReservation("session-a", mustTime(t, "2025-03-01T09:59:00Z"))

	if !first.Success || !second.Success {
		t.Fatalf("both bookings must succeed: %+v %+v", first, second)
	}
	if first.Reservation.ID != second.Reservation.ID {
		t.Fatalf("expected identical reservation id, got %s and %s", first.Reservation.ID, second.Reservation.ID)
	}
	if second.Note != NoteAlreadyConfirmed {
		t.Fatalf("unexpected note: %q", second.Note)
	}
}

func TestCancelReservationOwnership(t *testing.T) {
	t.Parallel()

	s := New()
	booked := s.BookReservation("session-a", mustTime(t, "2025-03-01T09:00:00Z"))

	res := s.CancelReservation(booked.Reservation.ID, "session-b")
	if res.Success {
		t.Fatal("foreign session must not cancel")
	}
	if res.Reason != ReasonNotFound {
		t.Fatalf("unexpected reason: %q", res.Reason)
	}

	// The same answer once the reservation is really cancelled.
	if out := s.CancelReservation(booked.Reservation.ID, "session-a"); !out.Success {
		t.Fatalf("owner cancel failed: %+v", out)
	}
	res = s.CancelReservation(booked.Reservation.ID, "session-b")
	if res.Reason != ReasonNotFound {
		t.Fatalf("unexpected reason after cancel: %q", res.Reason)
	}

	if res := s.CancelReservation("never-booked", "session-a"); res.Reason != ReasonNotFound {
		t.Fatalf("unexpected reason for unknown id: %q", res.Reason)
	}
}

func TestCancelReservationIsTerminal(t *testing.T) {
	t.Parallel()

	s := New()
	slot := mustTime(t, "2025-03-01T09:00:00Z")
	booked := s.BookReservation("session-a", slot)

	first := s.CancelReservation(booked.Reservation.ID, "session-a")
	if !first.Success || first.Reservation.Status != StatusCancelled {
		t.Fatalf("unexpected cancel result: %+v", first)
	}

	second := s.CancelReservation(booked.Reservation.ID, "session-a")
	if second.Success {
		t.Fatal("second cancel must fail")
	}
	if second.Reason != ReasonAlreadyCancelled {
		t.Fatalf("unexpected reason: %q", second.Reason)
	}
	if second.Reservation == nil || second.Reservation.Status != StatusCancelled {
		t.Fatalf("status must stay cancelled: %+v", second.Reservation)
	}

	if !s.CheckAvailability(slot).Available {
		t.Fatal("cancelled slot must be free again")
	}

	rebooked := s.BookReservation("session-b", slot)
	if !rebooked.Success {
		t.Fatalf("rebooking freed slot failed: %+v", rebooked)
	}
	if rebooked.Reservation.ID == booked.Reservation.ID {
		t.Fatal("reservation ids must never be reused")
	}
	old, _ := s.Reservation(booked.Reservation.ID)
	if old.Status != StatusCancelled {
		t.Fatalf("old reservation changed status: %s", old.Status)
	}
}

func TestConcurrentBookingsCommitOnce(t *testing.T) {
	t.Parallel()

	s := New()
	slot := mustTime(t, "2025-03-01T09:00:00Z")

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := s.BookReservation(fmt.Sprintf("session-%d", i), slot.Add(time.Duration(i)*time.Minute))
			if res.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful booking, got %d", successes)
	}
}

func TestReservationJSONView(t *testing.T) {
	t.Parallel()

	s := New(WithIDGenerator(func() string { return "abc" }))
	res := s.BookReservation("session-a", mustTime(t, "2025-03-01T09:30:00+00:00"))

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded["intent"] != IntentBookingResult || decoded["action"] != ActionConfirm {
		t.Fatalf("unexpected envelope: %s", raw)
	}
	reservation, ok := decoded["reservation"].(map[string]any)
	if !ok {
		t.Fatalf("missing reservation: %s", raw)
	}
	if reservation["reservation_id"] != "abc" {
		t.Fatalf("unexpected id: %v", reservation["reservation_id"])
	}
	if reservation["start_time"] != "2025-03-01T09:00:00Z" || reservation["end_time"] != "2025-03-01T10:00:00Z" {
		t.Fatalf("unexpected window: %v - %v", reservation["start_time"], reservation["end_time"])
	}
	if _, leaked := reservation["session_id"]; leaked {
		t.Fatal("session id must not be serialized")
	}
}
