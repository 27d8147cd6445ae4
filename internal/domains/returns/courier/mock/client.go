package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/courier"
)

// =====================================================
// MOCK COURIER GATEWAY
// =====================================================
// In-process gateway for local development and tests. Offers a fixed set of
// slots per day and hands out unique tracking numbers.

var defaultSlots = []courier.TimeSlot{
	"9am-11am",
	"10am-12pm",
	"2pm-4pm",
	"4pm-6pm",
}

type Gateway struct {
	mu sync.Mutex

	// Slots served for every (pincode, date); defaults to defaultSlots
	Slots []courier.TimeSlot

	// SlotsErr / BookErr force the next call to fail, for tests
	SlotsErr error
	BookErr  error

	// Bookings records every successful booking
	Bookings []courier.BookingRequest
}

// NewGateway creates a mock courier gateway with the default slot set
func NewGateway() *Gateway {
	return &Gateway{Slots: defaultSlots}
}

func (g *Gateway) AvailableSlots(ctx context.Context, pincode string, date time.Time) ([]courier.TimeSlot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.SlotsErr != nil {
		return nil, g.SlotsErr
	}
	out := make([]courier.TimeSlot, len(g.Slots))
	copy(out, g.Slots)
	return out, nil
}

func (g *Gateway) BookPickup(ctx context.Context, req courier.BookingRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.BookErr != nil {
		return "", g.BookErr
	}
	if !courier.SlotsContain(g.Slots, req.Slot) {
		return "", courier.ErrSlotNoLongerAvailable
	}
	g.Bookings = append(g.Bookings, req)
	return fmt.Sprintf("PKP-%s", uuid.NewString()[:8]), nil
}
