package service

import (
	"time"

	"github.com/shopspring/decimal"

	"returns-backend/internal/domains/returns/model"
)

// =====================================================
// ELIGIBILITY & VALIDATION RULES
// =====================================================
// Pure functions, no I/O. The workflow engine runs these before every store
// write; nothing here mutates state.

// nextStatusFor checks the requested action against the record's current
// status. Terminal records fail with ErrTerminalState no matter which action
// was requested; anything else off the transition table is ErrInvalidTransition.
func nextStatusFor(ret *model.ReturnRequest, action model.ReturnAction) (model.ReturnStatus, error) {
	if ret.IsTerminal() {
		return "", model.ErrTerminalState
	}
	next, ok := model.NextStatus(ret.Status, action)
	if !ok {
		return "", model.ErrInvalidTransition
	}
	return next, nil
}

// validateRefundAmount enforces the money-movement bounds. Amounts are
// rejected, never clamped: silent correction would hide bugs or fraud.
func validateRefundAmount(amount, total decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.NewFieldError("refund_amount", "must be greater than zero")
	}
	if amount.GreaterThan(total) {
		return model.NewFieldError("refund_amount", "must not exceed the total price")
	}
	return nil
}

// validateCompletion requires an explicit refund amount; completion must
// never default to the total price. An absent amount is a missing field; a
// supplied zero is an out-of-bounds amount, reported per field.
func validateCompletion(req model.CompleteReturnRequest, total decimal.Decimal) error {
	if req.RefundAmount == nil {
		return model.ErrMissingRefundAmount
	}
	if err := validateRefundAmount(*req.RefundAmount, total); err != nil {
		return err
	}
	if !model.RefundMethod(req.RefundMethod).IsValid() {
		return model.NewFieldError("refund_method", "unknown refund method")
	}
	return nil
}

// validatePickupDate requires the pickup to be today or later, at day
// granularity in UTC.
func validatePickupDate(date, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(today) {
		return model.NewFieldError("pickup_date", "must not be in the past")
	}
	return nil
}

// validateSeedTotal enforces total_price == unit_price * quantity at creation
func validateSeedTotal(req model.CreateReturnRequest) (decimal.Decimal, error) {
	expected := req.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity)))
	if req.TotalPrice != nil && !req.TotalPrice.Equal(expected) {
		return decimal.Zero, model.NewFieldError("total_price", "must equal unit_price * quantity")
	}
	return expected, nil
}
