package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/courier"
	"returns-backend/internal/domains/returns/model"
)

// ReturnService is the workflow engine: one operation per state-machine edge
// plus the read-side projections. Every transition is linearized through the
// store's compare-and-update; callers never mutate records directly.
type ReturnService interface {
	Create(ctx context.Context, req model.CreateReturnRequest) (*model.ReturnRequest, error)

	Approve(ctx context.Context, id uuid.UUID, actor string, req model.ReviewReturnRequest) (*model.ReturnRequest, error)
	Reject(ctx context.Context, id uuid.UUID, actor string, req model.ReviewReturnRequest) (*model.ReturnRequest, error)
	SchedulePickup(ctx context.Context, id uuid.UUID, actor string, req model.SchedulePickupRequest) (*model.ReturnRequest, error)
	StartProcessing(ctx context.Context, id uuid.UUID, actor string, req model.StartProcessingRequest) (*model.ReturnRequest, error)
	Complete(ctx context.Context, id uuid.UUID, actor string, req model.CompleteReturnRequest) (*model.ReturnRequest, error)
	Archive(ctx context.Context, id uuid.UUID, actor string) error

	GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error)
	GetStatusHistory(ctx context.Context, id uuid.UUID) ([]model.ReturnStatusHistory, error)
	List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnRequest, int, error)
	GetStats(ctx context.Context) (*model.StatsResponse, error)
	ListAvailableSlots(ctx context.Context, pincode string, date time.Time) ([]courier.TimeSlot, error)
}

// EventPublisher delivers domain events after a successful commit.
// Publishing is at-least-once and never blocks or fails the transition.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event model.StatusChangedEvent) error
}
