package repository

import (
	"context"

	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/model"
)

// ReturnRepository is the durable store for return requests.
// Update is the compare-and-update primitive: it commits the given record and
// its audit entry atomically only when the stored version still equals
// expectedVersion, otherwise it fails with model.ErrVersionMismatch. All
// writes go through it; there is no field-level mutation API.
type ReturnRepository interface {
	Create(ctx context.Context, ret *model.ReturnRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error)
	List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnRequest, int, error)
	Update(ctx context.Context, ret *model.ReturnRequest, expectedVersion int, history *model.ReturnStatusHistory) error
	Archive(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[model.ReturnStatus]int, error)
	GetStatusHistory(ctx context.Context, id uuid.UUID) ([]model.ReturnStatusHistory, error)
}
