package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"returns-backend/internal/domains/returns/model"
)

// =====================================================
// IN-MEMORY REPOSITORY IMPLEMENTATION
// =====================================================
// Mirrors the Postgres compare-and-update semantics behind a mutex. Used for
// local development without Postgres and by the service tests; it must stay
// behaviourally identical to the Postgres implementation, version checks
// included.

type memoryReturnRepository struct {
	mu        sync.RWMutex
	returns   map[uuid.UUID]*model.ReturnRequest
	histories map[uuid.UUID][]model.ReturnStatusHistory
}

func NewMemoryReturnRepository() ReturnRepository {
	return &memoryReturnRepository{
		returns:   make(map[uuid.UUID]*model.ReturnRequest),
		histories: make(map[uuid.UUID][]model.ReturnStatusHistory),
	}
}

func (r *memoryReturnRepository) Create(ctx context.Context, ret *model.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	ret.RequestedAt = now
	ret.UpdatedAt = now
	r.returns[ret.ID] = ret.Clone()
	return nil
}

func (r *memoryReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.returns[id]
	if !ok {
		return nil, model.ErrReturnNotFound
	}
	return stored.Clone(), nil
}

func (r *memoryReturnRepository) Update(
	ctx context.Context,
	ret *model.ReturnRequest,
	expectedVersion int,
	history *model.ReturnStatusHistory,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.returns[ret.ID]
	if !ok {
		return model.ErrReturnNotFound
	}
	if stored.Version != expectedVersion {
		return model.ErrVersionMismatch
	}

	ret.Version = expectedVersion + 1
	ret.UpdatedAt = time.Now().UTC()
	r.returns[ret.ID] = ret.Clone()

	if history != nil {
		history.ChangedAt = ret.UpdatedAt
		r.histories[ret.ID] = append(r.histories[ret.ID], *history)
	}

	return nil
}

func (r *memoryReturnRepository) Archive(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.returns[id]
	if !ok {
		return model.ErrReturnNotFound
	}
	if stored.ArchivedAt == nil {
		now := time.Now().UTC()
		stored.ArchivedAt = &now
		stored.UpdatedAt = now
		stored.Version++
	}
	return nil
}

func (r *memoryReturnRepository) List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnRequest, int, error) {
	filter = filter.Normalized()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []model.ReturnRequest
	for _, stored := range r.returns {
		if stored.IsArchived() {
			continue
		}
		if !matchesFilter(stored, filter) {
			continue
		}
		matched = append(matched, *stored.Clone())
	}

	sortReturns(matched, filter.Sort)

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memoryReturnRepository) CountByStatus(ctx context.Context) (map[model.ReturnStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[model.ReturnStatus]int)
	for _, stored := range r.returns {
		if stored.IsArchived() {
			continue
		}
		counts[stored.Status]++
	}
	return counts, nil
}

func (r *memoryReturnRepository) GetStatusHistory(ctx context.Context, id uuid.UUID) ([]model.ReturnStatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.returns[id]; !ok {
		return nil, model.ErrReturnNotFound
	}
	out := make([]model.ReturnStatusHistory, len(r.histories[id]))
	copy(out, r.histories[id])
	return out, nil
}

// =====================================================
// FILTER / SORT HELPERS
// =====================================================

func matchesFilter(ret *model.ReturnRequest, filter model.ReturnFilter) bool {
	if filter.Status != nil && *filter.Status != "" && ret.Status.String() != *filter.Status {
		return false
	}
	if filter.Search != nil && *filter.Search != "" {
		needle := strings.ToLower(*filter.Search)
		haystacks := []string{
			ret.ProductTitle,
			ret.RequestedBy,
			ret.Reason,
			ret.ID.String(),
			ret.OrderID,
		}
		found := false
		for _, h := range haystacks {
			if strings.Contains(strings.ToLower(h), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.DateFrom != nil && ret.RequestedAt.Before(*filter.DateFrom) {
		return false
	}
	if filter.DateTo != nil && ret.RequestedAt.After(*filter.DateTo) {
		return false
	}
	return true
}

func sortReturns(returns []model.ReturnRequest, key string) {
	less := func(i, j int) bool { return returns[i].RequestedAt.After(returns[j].RequestedAt) }
	switch key {
	case "requested_at_asc":
		less = func(i, j int) bool { return returns[i].RequestedAt.Before(returns[j].RequestedAt) }
	case "updated_at_desc":
		less = func(i, j int) bool { return returns[i].UpdatedAt.After(returns[j].UpdatedAt) }
	case "total_price_desc":
		less = func(i, j int) bool { return returns[i].TotalPrice.GreaterThan(returns[j].TotalPrice) }
	case "total_price_asc":
		less = func(i, j int) bool { return returns[i].TotalPrice.LessThan(returns[j].TotalPrice) }
	}
	sort.SliceStable(returns, less)
}
