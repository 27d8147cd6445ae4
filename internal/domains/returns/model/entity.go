package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// RETURN STATUS
// =====================================================

// ReturnStatus represents the lifecycle state of a return request
type ReturnStatus string

const (
	StatusPending    ReturnStatus = "pending"
	StatusApproved   ReturnStatus = "approved"
	StatusRejected   ReturnStatus = "rejected"
	StatusProcessing ReturnStatus = "processing"
	StatusCompleted  ReturnStatus = "completed"
)

func (s ReturnStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s
func (s ReturnStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

func (s ReturnStatus) String() string {
	return string(s)
}

// AllStatuses lists every valid status, used by stats projections
func AllStatuses() []ReturnStatus {
	return []ReturnStatus{StatusPending, StatusApproved, StatusRejected, StatusProcessing, StatusCompleted}
}

// =====================================================
// RETURN ACTION
// =====================================================

// ReturnAction is an operator action against a return request.
// Each action except SchedulePickup maps to one edge of the state machine;
// SchedulePickup attaches a pickup booking without changing status.
type ReturnAction string

const (
	ActionApprove         ReturnAction = "approve"
	ActionReject          ReturnAction = "reject"
	ActionSchedulePickup  ReturnAction = "schedule_pickup"
	ActionStartProcessing ReturnAction = "start_processing"
	ActionComplete        ReturnAction = "complete"
)

// transitionTable maps current status to the actions legal from it.
// Source state must match exactly; there is no state skipping.
var transitionTable = map[ReturnStatus]map[ReturnAction]ReturnStatus{
	StatusPending: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusRejected,
	},
	StatusApproved: {
		ActionSchedulePickup:  StatusApproved,
		ActionStartProcessing: StatusProcessing,
	},
	StatusProcessing: {
		ActionComplete: StatusCompleted,
	},
}

// NextStatus returns the target status for (current, action).
// ok is false when the action is not legal from the current status.
func NextStatus(current ReturnStatus, action ReturnAction) (ReturnStatus, bool) {
	edges, exists := transitionTable[current]
	if !exists {
		return "", false
	}
	next, exists := edges[action]
	return next, exists
}

// =====================================================
// REFUND METHOD
// =====================================================

// RefundMethod is the settlement channel chosen by the payment collaborator
type RefundMethod string

const (
	RefundMethodUPI          RefundMethod = "upi"
	RefundMethodBankTransfer RefundMethod = "bank_transfer"
	RefundMethodCard         RefundMethod = "card"
	RefundMethodStoreCredit  RefundMethod = "store_credit"
)

func (m RefundMethod) IsValid() bool {
	switch m {
	case RefundMethodUPI, RefundMethodBankTransfer, RefundMethodCard, RefundMethodStoreCredit:
		return true
	}
	return false
}

func (m RefundMethod) String() string {
	return string(m)
}

// =====================================================
// ENTITY: ReturnRequest
// =====================================================

// ReturnRequest is the aggregate root of the return lifecycle.
// Mutations go through the workflow service only; the Version field is the
// optimistic concurrency token checked by the store on every update.
type ReturnRequest struct {
	ID      uuid.UUID `json:"id"`
	OrderID string    `json:"order_id"`

	// Product snapshot at request time
	ProductID    string          `json:"product_id"`
	ProductTitle string          `json:"product_title"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`

	Reason        string  `json:"reason"`
	CustomerNotes *string `json:"customer_notes,omitempty"`
	RequestedBy   string  `json:"requested_by"`

	Status     ReturnStatus `json:"status"`
	AdminNotes *string      `json:"admin_notes,omitempty"`

	// Refund settlement, set no earlier than approval
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundMethod *RefundMethod    `json:"refund_method,omitempty"`

	Pickup *PickupBooking `json:"pickup,omitempty"`

	RequestedAt time.Time  `json:"requested_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	Version     int        `json:"version"`
}

// IsTerminal reports whether the request reached a terminal status
func (r *ReturnRequest) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// HasPickup reports whether a courier pickup has been booked
func (r *ReturnRequest) HasPickup() bool {
	return r.Pickup != nil && r.Pickup.TrackingNumber != ""
}

// IsArchived reports whether the request was soft-archived by an operator
func (r *ReturnRequest) IsArchived() bool {
	return r.ArchivedAt != nil
}

// ExpectedTotal recomputes the invariant total = unit_price * quantity
func (r *ReturnRequest) ExpectedTotal() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

// Clone returns a deep copy; the in-memory store hands out copies so callers
// can never mutate stored state outside the compare-and-update path.
func (r *ReturnRequest) Clone() *ReturnRequest {
	out := *r
	if r.CustomerNotes != nil {
		v := *r.CustomerNotes
		out.CustomerNotes = &v
	}
	if r.AdminNotes != nil {
		v := *r.AdminNotes
		out.AdminNotes = &v
	}
	if r.RefundAmount != nil {
		v := *r.RefundAmount
		out.RefundAmount = &v
	}
	if r.RefundMethod != nil {
		v := *r.RefundMethod
		out.RefundMethod = &v
	}
	if r.ArchivedAt != nil {
		v := *r.ArchivedAt
		out.ArchivedAt = &v
	}
	if r.Pickup != nil {
		p := *r.Pickup
		if r.Pickup.SpecialInstructions != nil {
			si := *r.Pickup.SpecialInstructions
			p.SpecialInstructions = &si
		}
		out.Pickup = &p
	}
	return &out
}

// =====================================================
// ENTITY: PickupBooking
// =====================================================

// PickupBooking is owned by a ReturnRequest and has no independent lifecycle.
// It can only be attached while the request is approved.
type PickupBooking struct {
	CustomerName        string    `json:"customer_name"`
	Phone               string    `json:"phone"`
	Address             string    `json:"address"`
	City                string    `json:"city"`
	State               string    `json:"state"`
	Pincode             string    `json:"pincode"`
	PickupDate          time.Time `json:"pickup_date"`
	TimeSlot            string    `json:"time_slot"`
	SpecialInstructions *string   `json:"special_instructions,omitempty"`

	// Assigned by the courier provider, immutable once set
	TrackingNumber string    `json:"tracking_number"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

// =====================================================
// ENTITY: ReturnStatusHistory
// =====================================================

// ReturnStatusHistory is the append-only audit trail of transitions,
// written in the same transaction as the transition it records.
type ReturnStatusHistory struct {
	ID         uuid.UUID `json:"id"`
	ReturnID   uuid.UUID `json:"return_id"`
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ChangedBy  *string   `json:"changed_by,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}
