package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returns-backend/internal/domains/returns/courier"
	courierMock "returns-backend/internal/domains/returns/courier/mock"
	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/repository"
)

// =====================================================
// TEST DOUBLES
// =====================================================

// capturingPublisher records every published event
type capturingPublisher struct {
	mu     sync.Mutex
	events []model.StatusChangedEvent
}

func (p *capturingPublisher) PublishStatusChanged(ctx context.Context, event model.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) captured() []model.StatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.StatusChangedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// mapCache is an in-memory cache.Cache for stats-caching tests
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *mapCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *mapCache) Increment(ctx context.Context, key string) (int64, error) { return 1, nil }

func (c *mapCache) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (c *mapCache) Ping(ctx context.Context) error { return nil }

// contentionRepo injects version mismatches into the compare-and-update path
type contentionRepo struct {
	repository.ReturnRepository
	mu          sync.Mutex
	failUpdates int
}

func (r *contentionRepo) Update(ctx context.Context, ret *model.ReturnRequest, expectedVersion int, history *model.ReturnStatusHistory) error {
	r.mu.Lock()
	if r.failUpdates > 0 {
		r.failUpdates--
		r.mu.Unlock()
		return model.ErrVersionMismatch
	}
	r.mu.Unlock()
	return r.ReturnRepository.Update(ctx, ret, expectedVersion, history)
}

// =====================================================
// FIXTURE
// =====================================================

var fixedNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *returnService
	repo    repository.ReturnRepository
	gateway *courierMock.Gateway
	events  *capturingPublisher
}

func newFixture() *fixture {
	repo := repository.NewMemoryReturnRepository()
	gateway := courierMock.NewGateway()
	events := &capturingPublisher{}
	return &fixture{
		svc: &returnService{
			repo:    repo,
			courier: gateway,
			events:  events,
			now:     func() time.Time { return fixedNow },
		},
		repo:    repo,
		gateway: gateway,
		events:  events,
	}
}

func dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func validCreateRequest() model.CreateReturnRequest {
	return model.CreateReturnRequest{
		OrderID:      "ORD-2045",
		ProductID:    "SKU-7",
		ProductTitle: "Noise Cancelling Headphones",
		Quantity:     2,
		UnitPrice:    decimal.NewFromFloat(74.50),
		Reason:       "wrong item delivered",
		RequestedBy:  "alice@example.com",
	}
}

func validPickupRequest() model.SchedulePickupRequest {
	return model.SchedulePickupRequest{
		CustomerName: "Alice Johnson",
		Phone:        "9876543210",
		Address:      "14 Rose Street",
		City:         "Pune",
		State:        "Maharashtra",
		Pincode:      "411001",
		PickupDate:   "2026-03-12",
		TimeSlot:     "9am-11am",
	}
}

func (f *fixture) mustCreate(t *testing.T) *model.ReturnRequest {
	t.Helper()
	ret, err := f.svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	return ret
}

func (f *fixture) mustApprove(t *testing.T, id uuid.UUID) *model.ReturnRequest {
	t.Helper()
	ret, err := f.svc.Approve(context.Background(), id, "admin@example.com", model.ReviewReturnRequest{})
	require.NoError(t, err)
	return ret
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var retErr *model.ReturnError
	require.ErrorAs(t, err, &retErr)
	assert.Equal(t, code, retErr.Code)
}

// =====================================================
// CREATE
// =====================================================

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds a pending request at version 1", func(t *testing.T) {
		f := newFixture()
		ret, err := f.svc.Create(ctx, validCreateRequest())
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, ret.Status)
		assert.Equal(t, 1, ret.Version)
		assert.True(t, ret.TotalPrice.Equal(decimal.NewFromFloat(149.00)))
		assert.NotEqual(t, uuid.Nil, ret.ID)
	})

	t.Run("accepts a matching supplied total", func(t *testing.T) {
		f := newFixture()
		req := validCreateRequest()
		total := decimal.NewFromFloat(149.00)
		req.TotalPrice = &total
		_, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
	})

	t.Run("rejects a mismatched total", func(t *testing.T) {
		f := newFixture()
		req := validCreateRequest()
		total := decimal.NewFromInt(999)
		req.TotalPrice = &total
		_, err := f.svc.Create(ctx, req)
		assertCode(t, err, model.ErrCodeValidation)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		f := newFixture()
		req := validCreateRequest()
		req.Reason = ""
		_, err := f.svc.Create(ctx, req)
		assertCode(t, err, model.ErrCodeValidation)
	})
}

// =====================================================
// LIFECYCLE
// =====================================================

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	admin := "admin@example.com"

	created := f.mustCreate(t)

	notes := "photos verified"
	approved, err := f.svc.Approve(ctx, created.ID, admin, model.ReviewReturnRequest{AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	assert.Equal(t, 2, approved.Version)
	assert.Equal(t, "photos verified", *approved.AdminNotes)

	withPickup, err := f.svc.SchedulePickup(ctx, created.ID, admin, validPickupRequest())
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, withPickup.Status)
	assert.Equal(t, 3, withPickup.Version)
	require.True(t, withPickup.HasPickup())
	assert.NotEmpty(t, withPickup.Pickup.TrackingNumber)
	assert.Len(t, f.gateway.Bookings, 1)

	processing, err := f.svc.StartProcessing(ctx, created.ID, admin, model.StartProcessingRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, processing.Status)

	completed, err := f.svc.Complete(ctx, created.ID, admin, model.CompleteReturnRequest{
		RefundAmount: dec(149.00),
		RefundMethod: "upi",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	assert.Equal(t, 5, completed.Version)
	require.NotNil(t, completed.RefundAmount)
	assert.True(t, completed.RefundAmount.Equal(decimal.NewFromFloat(149.00)))
	assert.Equal(t, model.RefundMethodUPI, *completed.RefundMethod)

	// Pickup booking keeps the status at approved, so three events total
	events := f.events.captured()
	require.Len(t, events, 3)
	assert.Equal(t, "approved", events[0].ToStatus)
	assert.Equal(t, "processing", events[1].ToStatus)
	assert.Equal(t, "completed", events[2].ToStatus)
	for _, e := range events {
		assert.Equal(t, created.ID, e.RequestID)
		assert.Equal(t, admin, e.Actor)
	}

	// Every committed edge leaves an audit row, pickup attach included
	history, err := f.svc.GetStatusHistory(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "approved", history[0].ToStatus)
	assert.Equal(t, "approved", history[1].ToStatus)
	assert.Equal(t, "processing", history[2].ToStatus)
	assert.Equal(t, "completed", history[3].ToStatus)
	require.NotNil(t, history[0].FromStatus)
	assert.Equal(t, "pending", *history[0].FromStatus)
}

func TestRejectPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created := f.mustCreate(t)

	notes := "outside the return window"
	rejected, err := f.svc.Reject(ctx, created.ID, "admin@example.com", model.ReviewReturnRequest{AdminNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)

	// Terminal records refuse every further action
	_, err = f.svc.Approve(ctx, created.ID, "admin@example.com", model.ReviewReturnRequest{})
	assertCode(t, err, model.ErrCodeTerminalState)
	_, err = f.svc.Complete(ctx, created.ID, "admin@example.com", model.CompleteReturnRequest{
		RefundAmount: dec(10),
		RefundMethod: "card",
	})
	assertCode(t, err, model.ErrCodeTerminalState)
	_, err = f.svc.SchedulePickup(ctx, created.ID, "admin@example.com", validPickupRequest())
	assertCode(t, err, model.ErrCodeTerminalState)
	assert.Empty(t, f.gateway.Bookings)
}

func TestTransitionErrors(t *testing.T) {
	ctx := context.Background()
	admin := "admin@example.com"

	t.Run("state skipping is refused", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)

		_, err := f.svc.Complete(ctx, created.ID, admin, model.CompleteReturnRequest{
			RefundAmount: dec(10),
			RefundMethod: "upi",
		})
		assertCode(t, err, model.ErrCodeInvalidTransition)

		_, err = f.svc.StartProcessing(ctx, created.ID, admin, model.StartProcessingRequest{})
		assertCode(t, err, model.ErrCodeInvalidTransition)
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Approve(ctx, uuid.New(), admin, model.ReviewReturnRequest{})
		assertCode(t, err, model.ErrCodeNotFound)
	})
}

// =====================================================
// REFUND RULES
// =====================================================

func TestRefundRules(t *testing.T) {
	ctx := context.Background()
	admin := "admin@example.com"

	startProcessing := func(t *testing.T, f *fixture) uuid.UUID {
		t.Helper()
		created := f.mustCreate(t)
		f.mustApprove(t, created.ID)
		_, err := f.svc.StartProcessing(ctx, created.ID, admin, model.StartProcessingRequest{})
		require.NoError(t, err)
		return created.ID
	}

	t.Run("completion without a refund amount", func(t *testing.T) {
		f := newFixture()
		id := startProcessing(t, f)
		_, err := f.svc.Complete(ctx, id, admin, model.CompleteReturnRequest{RefundMethod: "upi"})
		assertCode(t, err, model.ErrCodeMissingRefundAmount)
	})

	t.Run("explicit zero refund is a bounds failure, not a missing field", func(t *testing.T) {
		f := newFixture()
		id := startProcessing(t, f)
		_, err := f.svc.Complete(ctx, id, admin, model.CompleteReturnRequest{
			RefundAmount: dec(0),
			RefundMethod: "upi",
		})
		assertCode(t, err, model.ErrCodeValidation)
	})

	t.Run("refund exceeding the total is rejected, not clamped", func(t *testing.T) {
		f := newFixture()
		id := startProcessing(t, f)
		_, err := f.svc.Complete(ctx, id, admin, model.CompleteReturnRequest{
			RefundAmount: dec(500),
			RefundMethod: "upi",
		})
		assertCode(t, err, model.ErrCodeValidation)

		// The record is untouched by the failed completion
		ret, getErr := f.svc.GetByID(ctx, id)
		require.NoError(t, getErr)
		assert.Equal(t, model.StatusProcessing, ret.Status)
		assert.Nil(t, ret.RefundAmount)
	})

	t.Run("unknown refund method at completion", func(t *testing.T) {
		f := newFixture()
		id := startProcessing(t, f)
		_, err := f.svc.Complete(ctx, id, admin, model.CompleteReturnRequest{
			RefundAmount: dec(10),
			RefundMethod: "cash",
		})
		assertCode(t, err, model.ErrCodeValidation)
	})

	t.Run("review-time refund is validated against the total", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		amount := decimal.NewFromInt(500)
		_, err := f.svc.Approve(ctx, created.ID, admin, model.ReviewReturnRequest{RefundAmount: &amount})
		assertCode(t, err, model.ErrCodeValidation)
	})

	t.Run("review-time refund within bounds is recorded", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		amount := decimal.NewFromInt(100)
		method := "bank_transfer"
		approved, err := f.svc.Approve(ctx, created.ID, admin, model.ReviewReturnRequest{
			RefundAmount: &amount,
			RefundMethod: &method,
		})
		require.NoError(t, err)
		require.NotNil(t, approved.RefundAmount)
		assert.True(t, approved.RefundAmount.Equal(amount))
		assert.Equal(t, model.RefundMethodBankTransfer, *approved.RefundMethod)
	})
}

// =====================================================
// PICKUP SCHEDULING
// =====================================================

func TestSchedulePickup(t *testing.T) {
	ctx := context.Background()
	admin := "admin@example.com"

	t.Run("rejects a past pickup date", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		f.mustApprove(t, created.ID)

		req := validPickupRequest()
		req.PickupDate = "2026-03-09"
		_, err := f.svc.SchedulePickup(ctx, created.ID, admin, req)
		assertCode(t, err, model.ErrCodeValidation)
	})

	t.Run("same-day pickup is allowed", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		f.mustApprove(t, created.ID)

		req := validPickupRequest()
		req.PickupDate = "2026-03-10"
		_, err := f.svc.SchedulePickup(ctx, created.ID, admin, req)
		require.NoError(t, err)
	})

	t.Run("refuses pickup while pending", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		_, err := f.svc.SchedulePickup(ctx, created.ID, admin, validPickupRequest())
		assertCode(t, err, model.ErrCodeInvalidTransition)
		assert.Empty(t, f.gateway.Bookings)
	})

	t.Run("slot gone between listing and booking", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		f.mustApprove(t, created.ID)

		req := validPickupRequest()
		req.TimeSlot = "6pm-8pm"
		_, err := f.svc.SchedulePickup(ctx, created.ID, admin, req)
		assertCode(t, err, model.ErrCodeSlotUnavailable)
	})

	t.Run("provider outage maps to provider unavailable", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		f.mustApprove(t, created.ID)
		f.gateway.SlotsErr = courier.ErrProviderUnavailable

		_, err := f.svc.SchedulePickup(ctx, created.ID, admin, validPickupRequest())
		assertCode(t, err, model.ErrCodeProviderUnavailable)
	})

	t.Run("booking failure leaves the store untouched", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		f.mustApprove(t, created.ID)
		f.gateway.BookErr = courier.ErrProviderUnavailable

		_, err := f.svc.SchedulePickup(ctx, created.ID, admin, validPickupRequest())
		assertCode(t, err, model.ErrCodeProviderUnavailable)

		ret, getErr := f.svc.GetByID(ctx, created.ID)
		require.NoError(t, getErr)
		assert.Equal(t, model.StatusApproved, ret.Status)
		assert.Nil(t, ret.Pickup)
		assert.Equal(t, 2, ret.Version)
	})
}

func TestListAvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a pincode", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ListAvailableSlots(ctx, "", fixedNow.AddDate(0, 0, 1))
		assertCode(t, err, model.ErrCodeValidation)
	})

	t.Run("returns the provider slot set", func(t *testing.T) {
		f := newFixture()
		slots, err := f.svc.ListAvailableSlots(ctx, "411001", fixedNow.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Contains(t, slots, courier.TimeSlot("9am-11am"))
	})
}

// =====================================================
// CONCURRENCY
// =====================================================

func TestTransitionRetriesOnContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created := f.mustCreate(t)

	// One transient mismatch; the reload sees the same legal state and the
	// retry commits.
	contended := &contentionRepo{ReturnRepository: f.repo, failUpdates: 1}
	f.svc.repo = contended

	approved, err := f.svc.Approve(ctx, created.ID, "admin@example.com", model.ReviewReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
}

func TestTransitionGivesUpAfterRepeatedContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created := f.mustCreate(t)

	contended := &contentionRepo{ReturnRepository: f.repo, failUpdates: maxUpdateAttempts}
	f.svc.repo = contended

	_, err := f.svc.Approve(ctx, created.ID, "admin@example.com", model.ReviewReturnRequest{})
	assertCode(t, err, model.ErrCodeConflict)
}

func TestConcurrentApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created := f.mustCreate(t)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, created.ID, "admin@example.com", model.ReviewReturnRequest{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, failures int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		failures++
		var retErr *model.ReturnError
		require.ErrorAs(t, err, &retErr)
		// The loser sees a conflict, or an invalid transition if it loaded
		// the record only after the winner committed.
		assert.Contains(t, []string{model.ErrCodeConflict, model.ErrCodeInvalidTransition}, retErr.Code)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)

	// Exactly one committed transition and one event
	ret, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, ret.Status)
	assert.Equal(t, 2, ret.Version)
	assert.Len(t, f.events.captured(), 1)
}

// =====================================================
// ARCHIVE & READ SIDE
// =====================================================

func TestArchive(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	created := f.mustCreate(t)

	require.NoError(t, f.svc.Archive(ctx, created.ID, "admin@example.com"))

	// Archived records stay fetchable by id
	ret, err := f.svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ret.IsArchived())

	// ...but are gone from listings
	items, total, err := f.svc.List(ctx, model.ReturnFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	// Idempotent
	require.NoError(t, f.svc.Archive(ctx, created.ID, "admin@example.com"))

	err = f.svc.Archive(ctx, uuid.New(), "admin@example.com")
	assertCode(t, err, model.ErrCodeNotFound)
}

func TestGetStatusHistoryUnknownID(t *testing.T) {
	f := newFixture()
	_, err := f.svc.GetStatusHistory(context.Background(), uuid.New())
	assertCode(t, err, model.ErrCodeNotFound)
}

func TestListValidatesFilter(t *testing.T) {
	f := newFixture()
	bogus := "shipped"
	_, _, err := f.svc.List(context.Background(), model.ReturnFilter{Status: &bogus})
	assertCode(t, err, model.ErrCodeValidation)
}

// =====================================================
// STATS
// =====================================================

func TestGetStats(t *testing.T) {
	ctx := context.Background()

	t.Run("counts per status with zero-filled buckets", func(t *testing.T) {
		f := newFixture()
		created := f.mustCreate(t)
		f.mustCreate(t)
		f.mustApprove(t, created.ID)

		stats, err := f.svc.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 1, stats.ByStatus["pending"])
		assert.Equal(t, 1, stats.ByStatus["approved"])
		assert.Equal(t, 0, stats.ByStatus["rejected"])
		assert.Equal(t, 0, stats.ByStatus["processing"])
		assert.Equal(t, 0, stats.ByStatus["completed"])
	})

	t.Run("writes invalidate the cached projection", func(t *testing.T) {
		f := newFixture()
		f.svc.cache = newMapCache()
		f.mustCreate(t)

		stats, err := f.svc.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)

		// A second create must not serve the stale cached total
		f.mustCreate(t)
		stats, err = f.svc.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Total)
	})
}
