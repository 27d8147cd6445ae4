package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/courier"
	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/repository"
	"returns-backend/pkg/cache"
	"returns-backend/pkg/logger"
)

const (
	// maxUpdateAttempts bounds the compare-and-update retry loop. Contention
	// on a single return request is operator-vs-operator, so three attempts
	// is plenty before reporting a conflict.
	maxUpdateAttempts = 3

	statsCacheKey = "returns:stats"
	statsCacheTTL = 60 * time.Second
)

// =====================================================
// RETURN SERVICE IMPLEMENTATION
// =====================================================
type returnService struct {
	repo    repository.ReturnRepository
	courier courier.Gateway
	events  EventPublisher
	cache   cache.Cache
	now     func() time.Time
}

// NewReturnService creates the workflow engine. events and c may be nil in
// tests; publishing and stats caching degrade to no-ops.
func NewReturnService(
	repo repository.ReturnRepository,
	gateway courier.Gateway,
	events EventPublisher,
	c cache.Cache,
) ReturnService {
	return &returnService{
		repo:    repo,
		courier: gateway,
		events:  events,
		cache:   c,
		now:     time.Now,
	}
}

// =====================================================
// CREATE
// =====================================================

func (s *returnService) Create(ctx context.Context, req model.CreateReturnRequest) (*model.ReturnRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid return request", err)
	}
	total, err := validateSeedTotal(req)
	if err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid return request", err)
	}

	ret := &model.ReturnRequest{
		ID:            uuid.New(),
		OrderID:       req.OrderID,
		ProductID:     req.ProductID,
		ProductTitle:  req.ProductTitle,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		TotalPrice:    total,
		Reason:        req.Reason,
		CustomerNotes: req.CustomerNotes,
		RequestedBy:   req.RequestedBy,
		Status:        model.StatusPending,
		Version:       1,
	}

	if err := s.repo.Create(ctx, ret); err != nil {
		logger.Error("failed to create return request", err)
		return nil, model.NewReturnError(model.ErrCodeValidation, "failed to create return request", err)
	}

	s.invalidateStats(ctx)
	return ret, nil
}

// =====================================================
// TRANSITIONS
// =====================================================

func (s *returnService) Approve(ctx context.Context, id uuid.UUID, actor string, req model.ReviewReturnRequest) (*model.ReturnRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid review request", err)
	}
	return s.transition(ctx, id, actor, model.ActionApprove, req.AdminNotes, func(ret *model.ReturnRequest) error {
		return applyReview(ret, req)
	})
}

func (s *returnService) Reject(ctx context.Context, id uuid.UUID, actor string, req model.ReviewReturnRequest) (*model.ReturnRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid review request", err)
	}
	return s.transition(ctx, id, actor, model.ActionReject, req.AdminNotes, func(ret *model.ReturnRequest) error {
		return applyReview(ret, req)
	})
}

func (s *returnService) StartProcessing(ctx context.Context, id uuid.UUID, actor string, req model.StartProcessingRequest) (*model.ReturnRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid request", err)
	}
	return s.transition(ctx, id, actor, model.ActionStartProcessing, req.AdminNotes, func(ret *model.ReturnRequest) error {
		if req.AdminNotes != nil {
			ret.AdminNotes = req.AdminNotes
		}
		return nil
	})
}

func (s *returnService) Complete(ctx context.Context, id uuid.UUID, actor string, req model.CompleteReturnRequest) (*model.ReturnRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid completion request", err)
	}
	return s.transition(ctx, id, actor, model.ActionComplete, req.AdminNotes, func(ret *model.ReturnRequest) error {
		if err := validateCompletion(req, ret.TotalPrice); err != nil {
			return err
		}
		amount := *req.RefundAmount
		method := model.RefundMethod(req.RefundMethod)
		ret.RefundAmount = &amount
		ret.RefundMethod = &method
		if req.AdminNotes != nil {
			ret.AdminNotes = req.AdminNotes
		}
		return nil
	})
}

// applyReview records optional refund fields supplied at review time
func applyReview(ret *model.ReturnRequest, req model.ReviewReturnRequest) error {
	if req.AdminNotes != nil {
		ret.AdminNotes = req.AdminNotes
	}
	if req.RefundAmount != nil {
		if err := validateRefundAmount(*req.RefundAmount, ret.TotalPrice); err != nil {
			return err
		}
		ret.RefundAmount = req.RefundAmount
	}
	if req.RefundMethod != nil {
		method := model.RefundMethod(*req.RefundMethod)
		if !method.IsValid() {
			return model.ErrInvalidRefundMethod
		}
		ret.RefundMethod = &method
	}
	return nil
}

// transition is the single write path for every state-machine edge. It loads
// the record, checks the edge, applies the mutation, and commits through the
// store's compare-and-update. On a version mismatch it reloads and
// re-evaluates: if the action is still legal from the new state the commit is
// retried; if the concurrent writer made it illegal the caller gets a
// conflict instead of a misleading invalid-transition error.
func (s *returnService) transition(
	ctx context.Context,
	id uuid.UUID,
	actor string,
	action model.ReturnAction,
	notes *string,
	apply func(*model.ReturnRequest) error,
) (*model.ReturnRequest, error) {
	var lastErr error

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		ret, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, s.wrapLookupErr(err)
		}

		from := ret.Status
		next, err := nextStatusFor(ret, action)
		if err != nil {
			if attempt > 0 {
				// A concurrent writer moved the record first; the action was
				// legal when the operator issued it, so this is a conflict.
				return nil, model.NewReturnError(model.ErrCodeConflict,
					"return request was modified concurrently", err)
			}
			return nil, s.wrapTransitionErr(err)
		}

		if err := apply(ret); err != nil {
			return nil, s.wrapDomainErr(err)
		}
		ret.Status = next

		history := &model.ReturnStatusHistory{
			ID:        uuid.New(),
			ReturnID:  ret.ID,
			ToStatus:  next.String(),
			ChangedBy: &actor,
			Notes:     notes,
		}
		fromStr := from.String()
		history.FromStatus = &fromStr

		err = s.repo.Update(ctx, ret, ret.Version, history)
		if err == nil {
			s.invalidateStats(ctx)
			if from != next {
				s.publishStatusChanged(ctx, ret, from, next, actor)
			}
			return ret, nil
		}
		if !errors.Is(err, model.ErrVersionMismatch) {
			logger.Error("failed to update return request", err)
			return nil, model.NewReturnError(model.ErrCodeConflict, "failed to update return request", err)
		}
		lastErr = err
	}

	return nil, model.NewReturnError(model.ErrCodeConflict,
		"return request was modified concurrently", lastErr)
}

// =====================================================
// PICKUP SCHEDULING
// =====================================================

// SchedulePickup books a courier pickup for an approved return. The provider
// offer is re-queried server-side right before booking, so a stale slot list
// in the operator UI can never reserve a gone slot. BookPickup is called at
// most once; a concurrent status change after booking surfaces as a conflict
// and leaves the store untouched.
func (s *returnService) SchedulePickup(ctx context.Context, id uuid.UUID, actor string, req model.SchedulePickupRequest) (*model.ReturnRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid pickup request", err)
	}
	date, err := req.ParsedDate()
	if err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid pickup request",
			model.NewFieldError("pickup_date", "must be formatted as "+model.PickupDateLayout))
	}
	if err := validatePickupDate(date, s.now()); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid pickup request", err)
	}

	// Pre-flight status check before touching the provider
	ret, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrapLookupErr(err)
	}
	if _, err := nextStatusFor(ret, model.ActionSchedulePickup); err != nil {
		return nil, s.wrapTransitionErr(err)
	}

	slots, err := s.courier.AvailableSlots(ctx, req.Pincode, date)
	if err != nil {
		return nil, s.wrapCourierErr(err)
	}
	if !courier.SlotsContain(slots, courier.TimeSlot(req.TimeSlot)) {
		return nil, model.NewReturnError(model.ErrCodeSlotUnavailable,
			"pickup slot no longer available", courier.ErrSlotNoLongerAvailable)
	}

	var instructions string
	if req.SpecialInstructions != nil {
		instructions = *req.SpecialInstructions
	}
	tracking, err := s.courier.BookPickup(ctx, courier.BookingRequest{
		Pincode:             req.Pincode,
		Date:                date,
		Slot:                courier.TimeSlot(req.TimeSlot),
		CustomerName:        req.CustomerName,
		Phone:               req.Phone,
		Address:             req.Address,
		City:                req.City,
		State:               req.State,
		SpecialInstructions: instructions,
	})
	if err != nil {
		return nil, s.wrapCourierErr(err)
	}

	booking := &model.PickupBooking{
		CustomerName:        req.CustomerName,
		Phone:               req.Phone,
		Address:             req.Address,
		City:                req.City,
		State:               req.State,
		Pincode:             req.Pincode,
		PickupDate:          date,
		TimeSlot:            req.TimeSlot,
		SpecialInstructions: req.SpecialInstructions,
		TrackingNumber:      tracking,
		ScheduledAt:         s.now().UTC(),
	}

	// Attach the booking; status stays approved so no event is emitted
	return s.transition(ctx, id, actor, model.ActionSchedulePickup, req.AdminNotes, func(r *model.ReturnRequest) error {
		r.Pickup = booking
		if req.AdminNotes != nil {
			r.AdminNotes = req.AdminNotes
		}
		return nil
	})
}

func (s *returnService) ListAvailableSlots(ctx context.Context, pincode string, date time.Time) ([]courier.TimeSlot, error) {
	if pincode == "" {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid slots request",
			model.NewFieldError("pincode", "is required"))
	}
	if err := validatePickupDate(date, s.now()); err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "invalid slots request", err)
	}
	slots, err := s.courier.AvailableSlots(ctx, pincode, date)
	if err != nil {
		return nil, s.wrapCourierErr(err)
	}
	return slots, nil
}

// =====================================================
// ARCHIVE
// =====================================================

// Archive soft-removes a request from operator listings. The record and its
// audit trail remain in the store; archiving is idempotent.
func (s *returnService) Archive(ctx context.Context, id uuid.UUID, actor string) error {
	if err := s.repo.Archive(ctx, id); err != nil {
		return s.wrapLookupErr(err)
	}
	logger.Info("return request archived", map[string]interface{}{
		"return_id": id.String(),
		"actor":     actor,
	})
	s.invalidateStats(ctx)
	return nil
}

// =====================================================
// READ SIDE
// =====================================================

func (s *returnService) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	ret, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.wrapLookupErr(err)
	}
	return ret, nil
}

func (s *returnService) GetStatusHistory(ctx context.Context, id uuid.UUID) ([]model.ReturnStatusHistory, error) {
	// Existence check first so a bogus id is a 404, not an empty list
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, s.wrapLookupErr(err)
	}
	history, err := s.repo.GetStatusHistory(ctx, id)
	if err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "failed to load status history", err)
	}
	return history, nil
}

func (s *returnService) List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnRequest, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, model.NewReturnError(model.ErrCodeValidation, "invalid list filter", err)
	}
	return s.repo.List(ctx, filter.Normalized())
}

func (s *returnService) GetStats(ctx context.Context) (*model.StatsResponse, error) {
	if s.cache != nil {
		var cached model.StatsResponse
		if found, err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, model.NewReturnError(model.ErrCodeValidation, "failed to load stats", err)
	}

	stats := &model.StatsResponse{ByStatus: make(map[string]int, len(model.AllStatuses()))}
	for _, status := range model.AllStatuses() {
		n := counts[status]
		stats.ByStatus[status.String()] = n
		stats.Total += n
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, statsCacheTTL); err != nil {
			logger.Error("failed to cache return stats", err)
		}
	}
	return stats, nil
}

// =====================================================
// INTERNAL HELPERS
// =====================================================

// invalidateStats drops the cached stats projection after any write
func (s *returnService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
		logger.Error("failed to invalidate stats cache", err)
	}
}

// publishStatusChanged emits the post-commit domain event. Publishing is
// best-effort: a broker failure is logged, never propagated to the operator.
func (s *returnService) publishStatusChanged(ctx context.Context, ret *model.ReturnRequest, from, to model.ReturnStatus, actor string) {
	if s.events == nil {
		return
	}
	event := model.StatusChangedEvent{
		RequestID:  ret.ID,
		OrderID:    ret.OrderID,
		FromStatus: from.String(),
		ToStatus:   to.String(),
		Actor:      actor,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishStatusChanged(ctx, event); err != nil {
		logger.Error("failed to publish status changed event", err)
	}
}

func (s *returnService) wrapLookupErr(err error) error {
	if errors.Is(err, model.ErrReturnNotFound) {
		return model.NewReturnError(model.ErrCodeNotFound, "return request not found", err)
	}
	var retErr *model.ReturnError
	if errors.As(err, &retErr) {
		return err
	}
	return model.NewReturnError(model.ErrCodeValidation, "failed to load return request", err)
}

func (s *returnService) wrapTransitionErr(err error) error {
	switch {
	case errors.Is(err, model.ErrTerminalState):
		return model.NewReturnError(model.ErrCodeTerminalState, "return request is in a terminal state", err)
	case errors.Is(err, model.ErrInvalidTransition):
		return model.NewReturnError(model.ErrCodeInvalidTransition, "action is not allowed from the current status", err)
	}
	return err
}

func (s *returnService) wrapDomainErr(err error) error {
	var fieldErr *model.FieldError
	switch {
	case errors.Is(err, model.ErrMissingRefundAmount):
		return model.NewReturnError(model.ErrCodeMissingRefundAmount, "refund amount is required to complete a return", err)
	case errors.As(err, &fieldErr), errors.Is(err, model.ErrInvalidRefundMethod):
		return model.NewReturnError(model.ErrCodeValidation, "invalid request", err)
	}
	return err
}

func (s *returnService) wrapCourierErr(err error) error {
	switch {
	case errors.Is(err, courier.ErrSlotNoLongerAvailable):
		return model.NewReturnError(model.ErrCodeSlotUnavailable, "pickup slot no longer available", err)
	case errors.Is(err, courier.ErrProviderUnavailable):
		return model.NewReturnError(model.ErrCodeProviderUnavailable, "courier provider unavailable", err)
	}
	return model.NewReturnError(model.ErrCodeProviderUnavailable, "courier provider error", err)
}
