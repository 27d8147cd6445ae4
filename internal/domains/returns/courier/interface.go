package courier

import (
	"context"
	"errors"
	"time"
)

// =====================================================
// COURIER GATEWAY INTERFACE
// =====================================================

// Gateway is the pickup scheduling capability of a logistics provider.
// It is the sole owner of courier protocol details; the workflow engine
// treats it as an opaque dependency with these two operations.
type Gateway interface {
	// AvailableSlots returns the pickup time slots the provider offers for
	// a postal code on a given date. Fails with ErrProviderUnavailable when
	// the provider cannot be reached within the configured timeout.
	AvailableSlots(ctx context.Context, pincode string, date time.Time) ([]TimeSlot, error)

	// BookPickup reserves a slot and returns the provider tracking number.
	// Fails with ErrSlotNoLongerAvailable when the slot was taken between
	// query and booking; the caller must re-query and re-select.
	BookPickup(ctx context.Context, req BookingRequest) (string, error)
}

// TimeSlot is a provider-defined pickup window, e.g. "10am-12pm"
type TimeSlot string

func (s TimeSlot) String() string {
	return string(s)
}

// BookingRequest carries everything the provider needs to dispatch a courier
type BookingRequest struct {
	Pincode             string
	Date                time.Time
	Slot                TimeSlot
	CustomerName        string
	Phone               string
	Address             string
	City                string
	State               string
	SpecialInstructions string
}

// =====================================================
// GATEWAY ERRORS
// =====================================================
var (
	// ErrProviderUnavailable is retryable: the courier API timed out or
	// answered with a server error. The return request itself is untouched.
	ErrProviderUnavailable = errors.New("courier provider unavailable")

	// ErrSlotNoLongerAvailable means the requested slot was taken between
	// availability query and booking.
	ErrSlotNoLongerAvailable = errors.New("pickup slot no longer available")
)

// SlotsContain reports whether slot is in the provider's current offer
func SlotsContain(slots []TimeSlot, slot TimeSlot) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
