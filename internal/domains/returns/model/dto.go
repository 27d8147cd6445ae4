package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PickupDateLayout is the wire format for pickup dates
const PickupDateLayout = "2006-01-02"

// =====================================================
// REQUEST DTOs
// =====================================================

// CreateReturnRequest seeds a new return request from the order collaborator.
// TotalPrice is optional; when present it must equal unit_price * quantity.
type CreateReturnRequest struct {
	OrderID       string           `json:"order_id"`
	ProductID     string           `json:"product_id"`
	ProductTitle  string           `json:"product_title"`
	Quantity      int              `json:"quantity"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	TotalPrice    *decimal.Decimal `json:"total_price,omitempty"`
	Reason        string           `json:"reason"`
	CustomerNotes *string          `json:"customer_notes,omitempty"`
	RequestedBy   string           `json:"requested_by"`
}

func (r CreateReturnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OrderID, validation.Required.Error("order_id is required"), validation.Length(1, 64)),
		validation.Field(&r.ProductID, validation.Required.Error("product_id is required"), validation.Length(1, 64)),
		validation.Field(&r.ProductTitle, validation.Required.Error("product_title is required"), validation.Length(1, 255)),
		validation.Field(&r.Quantity, validation.Required.Error("quantity is required"), validation.Min(1)),
		validation.Field(&r.UnitPrice, validation.By(positiveAmount("unit_price"))),
		validation.Field(&r.Reason, validation.Required.Error("reason is required"), validation.Length(1, 500)),
		validation.Field(&r.RequestedBy, validation.Required.Error("requested_by is required"), validation.Length(1, 255)),
	)
}

// ReviewReturnRequest carries the approve/reject payload. Refund fields are
// optional at this stage; when supplied they are recorded but not required.
type ReviewReturnRequest struct {
	AdminNotes   *string          `json:"admin_notes,omitempty"`
	RefundAmount *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundMethod *string          `json:"refund_method,omitempty"`
}

func (r ReviewReturnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AdminNotes, validation.Length(0, 1000)),
		validation.Field(&r.RefundMethod, validation.In(
			RefundMethodUPI.String(),
			RefundMethodBankTransfer.String(),
			RefundMethodCard.String(),
			RefundMethodStoreCredit.String(),
		).Error("refund_method must be one of upi, bank_transfer, card, store_credit")),
	)
}

// StartProcessingRequest advances an approved return to processing.
// A pickup booking is deliberately not required (drop-off returns).
type StartProcessingRequest struct {
	AdminNotes *string `json:"admin_notes,omitempty"`
}

func (r StartProcessingRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AdminNotes, validation.Length(0, 1000)),
	)
}

// CompleteReturnRequest settles the refund. Refund amount is mandatory here:
// completion moves money and must never default silently. The pointer keeps
// an absent field distinguishable from an explicit zero, which is a supplied
// but out-of-bounds amount.
type CompleteReturnRequest struct {
	RefundAmount *decimal.Decimal `json:"refund_amount"`
	RefundMethod string           `json:"refund_method"`
	AdminNotes   *string          `json:"admin_notes,omitempty"`
}

func (r CompleteReturnRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefundMethod,
			validation.Required.Error("refund_method is required"),
			validation.In(
				RefundMethodUPI.String(),
				RefundMethodBankTransfer.String(),
				RefundMethodCard.String(),
				RefundMethodStoreCredit.String(),
			).Error("refund_method must be one of upi, bank_transfer, card, store_credit"),
		),
		validation.Field(&r.AdminNotes, validation.Length(0, 1000)),
	)
}

// SchedulePickupRequest books a courier pickup for an approved return
type SchedulePickupRequest struct {
	CustomerName        string  `json:"customer_name"`
	Phone               string  `json:"phone"`
	Address             string  `json:"address"`
	City                string  `json:"city"`
	State               string  `json:"state"`
	Pincode             string  `json:"pincode"`
	PickupDate          string  `json:"pickup_date"`
	TimeSlot            string  `json:"time_slot"`
	SpecialInstructions *string `json:"special_instructions,omitempty"`
	AdminNotes          *string `json:"admin_notes,omitempty"`
}

func (r SchedulePickupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CustomerName, validation.Required.Error("customer_name is required"), validation.Length(1, 255)),
		validation.Field(&r.Phone, validation.Required.Error("phone is required"), validation.Length(6, 20)),
		validation.Field(&r.Address, validation.Required.Error("address is required"), validation.Length(1, 500)),
		validation.Field(&r.City, validation.Required.Error("city is required"), validation.Length(1, 100)),
		validation.Field(&r.State, validation.Required.Error("state is required"), validation.Length(1, 100)),
		validation.Field(&r.Pincode, validation.Required.Error("pincode is required"), validation.Length(4, 10)),
		validation.Field(&r.PickupDate, validation.Required.Error("pickup_date is required"), validation.Date(PickupDateLayout)),
		validation.Field(&r.TimeSlot, validation.Required.Error("time_slot is required"), validation.Length(1, 50)),
		validation.Field(&r.AdminNotes, validation.Length(0, 1000)),
	)
}

// ParsedDate returns the pickup date in UTC; Validate must have passed first
func (r SchedulePickupRequest) ParsedDate() (time.Time, error) {
	return time.ParseInLocation(PickupDateLayout, r.PickupDate, time.UTC)
}

// ReturnFilter is the combinable (logical AND) list filter
type ReturnFilter struct {
	Status   *string    `json:"status" form:"status"`
	Search   *string    `json:"search" form:"search"`
	DateFrom *time.Time `json:"date_from" form:"date_from" time_format:"2006-01-02"`
	DateTo   *time.Time `json:"date_to" form:"date_to" time_format:"2006-01-02"`

	Page  int    `json:"page" form:"page"`
	Limit int    `json:"limit" form:"limit"`
	Sort  string `json:"sort" form:"sort"`
}

func (f ReturnFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Status, validation.In(
			StatusPending.String(),
			StatusApproved.String(),
			StatusRejected.String(),
			StatusProcessing.String(),
			StatusCompleted.String(),
		).Error("status must be one of pending, approved, rejected, processing, completed")),
		validation.Field(&f.Page, validation.Min(0)),
		validation.Field(&f.Limit, validation.Min(0), validation.Max(100)),
		validation.Field(&f.Sort, validation.In(
			"requested_at_desc", "requested_at_asc", "updated_at_desc", "total_price_desc", "total_price_asc",
		).Error("unsupported sort key")),
	)
}

// Normalized fills pagination defaults
func (f ReturnFilter) Normalized() ReturnFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Sort == "" {
		f.Sort = "requested_at_desc"
	}
	return f
}

// positiveAmount rejects zero and negative monetary amounts
func positiveAmount(field string) validation.RuleFunc {
	return func(value interface{}) error {
		amount, ok := value.(decimal.Decimal)
		if !ok {
			return NewFieldError(field, "must be a decimal amount")
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return NewFieldError(field, "must be greater than zero")
		}
		return nil
	}
}

// =====================================================
// RESPONSE DTOs
// =====================================================

// ReturnResponse is the full operator-facing view of a return request
type ReturnResponse struct {
	ID            uuid.UUID        `json:"id"`
	OrderID       string           `json:"order_id"`
	ProductID     string           `json:"product_id"`
	ProductTitle  string           `json:"product_title"`
	Quantity      int              `json:"quantity"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	TotalPrice    decimal.Decimal  `json:"total_price"`
	Reason        string           `json:"reason"`
	CustomerNotes *string          `json:"customer_notes,omitempty"`
	RequestedBy   string           `json:"requested_by"`
	Status        string           `json:"status"`
	AdminNotes    *string          `json:"admin_notes,omitempty"`
	RefundAmount  *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundMethod  *string          `json:"refund_method,omitempty"`
	Pickup        *PickupResponse  `json:"pickup,omitempty"`
	RequestedAt   time.Time        `json:"requested_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PickupResponse mirrors the stored pickup booking
type PickupResponse struct {
	CustomerName        string    `json:"customer_name"`
	Phone               string    `json:"phone"`
	Address             string    `json:"address"`
	City                string    `json:"city"`
	State               string    `json:"state"`
	Pincode             string    `json:"pincode"`
	PickupDate          string    `json:"pickup_date"`
	TimeSlot            string    `json:"time_slot"`
	SpecialInstructions *string   `json:"special_instructions,omitempty"`
	TrackingNumber      string    `json:"tracking_number"`
	ScheduledAt         time.Time `json:"scheduled_at"`
}

// HistoryResponse is one audit-trail entry
type HistoryResponse struct {
	ID         uuid.UUID `json:"id"`
	FromStatus *string   `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ChangedBy  *string   `json:"changed_by,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// StatsResponse holds the per-status counts consumed by operator tooling
type StatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// ToResponse converts a ReturnRequest to its API representation
func (r *ReturnRequest) ToResponse() *ReturnResponse {
	resp := &ReturnResponse{
		ID:            r.ID,
		OrderID:       r.OrderID,
		ProductID:     r.ProductID,
		ProductTitle:  r.ProductTitle,
		Quantity:      r.Quantity,
		UnitPrice:     r.UnitPrice,
		TotalPrice:    r.TotalPrice,
		Reason:        r.Reason,
		CustomerNotes: r.CustomerNotes,
		RequestedBy:   r.RequestedBy,
		Status:        r.Status.String(),
		AdminNotes:    r.AdminNotes,
		RefundAmount:  r.RefundAmount,
		RequestedAt:   r.RequestedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.RefundMethod != nil {
		m := r.RefundMethod.String()
		resp.RefundMethod = &m
	}
	if r.Pickup != nil {
		resp.Pickup = &PickupResponse{
			CustomerName:        r.Pickup.CustomerName,
			Phone:               r.Pickup.Phone,
			Address:             r.Pickup.Address,
			City:                r.Pickup.City,
			State:               r.Pickup.State,
			Pincode:             r.Pickup.Pincode,
			PickupDate:          r.Pickup.PickupDate.Format(PickupDateLayout),
			TimeSlot:            r.Pickup.TimeSlot,
			SpecialInstructions: r.Pickup.SpecialInstructions,
			TrackingNumber:      r.Pickup.TrackingNumber,
			ScheduledAt:         r.Pickup.ScheduledAt,
		}
	}
	return resp
}

// ToHistoryResponse converts an audit entry to its API representation
func (h *ReturnStatusHistory) ToHistoryResponse() *HistoryResponse {
	return &HistoryResponse{
		ID:         h.ID,
		FromStatus: h.FromStatus,
		ToStatus:   h.ToStatus,
		ChangedBy:  h.ChangedBy,
		Notes:      h.Notes,
		ChangedAt:  h.ChangedAt,
	}
}
