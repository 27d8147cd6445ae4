package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"returns-backend/internal/domains/returns/repository"
	"returns-backend/internal/infrastructure/email"
	"returns-backend/internal/shared"
	"returns-backend/pkg/cache"
)

// dedupeTTL keeps the delivery marker long enough to absorb asynq redeliveries
const dedupeTTL = 24 * time.Hour

// StatusChangedHandler notifies the customer about a committed transition.
// Broker delivery is at-least-once, so the handler keeps a redis marker per
// (request_id, to_status) and treats a duplicate as already handled.
type StatusChangedHandler struct {
	emailService email.EmailService
	returnRepo   repository.ReturnRepository
	cache        cache.Cache
}

func NewStatusChangedHandler(
	emailService email.EmailService,
	returnRepo repository.ReturnRepository,
	c cache.Cache,
) *StatusChangedHandler {
	return &StatusChangedHandler{
		emailService: emailService,
		returnRepo:   returnRepo,
		cache:        c,
	}
}

func (h *StatusChangedHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.StatusChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal StatusChanged payload")
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	// Claim the delivery marker up front so concurrent deliveries of the
	// same event race on a single atomic increment. Any failure after this
	// point must release the marker, otherwise the asynq retry would be
	// mistaken for a duplicate and the notification lost.
	dedupeKey := fmt.Sprintf("returns:notified:%s:%s", payload.RequestID, payload.ToStatus)
	marked := false
	seen, err := h.cache.Increment(ctx, dedupeKey)
	if err != nil {
		// Dedupe is best-effort; a cache outage means a possible duplicate
		// email, not a lost one
		log.Error().Err(err).Str("key", dedupeKey).Msg("Dedupe check failed, proceeding")
	} else if seen > 1 {
		log.Info().
			Str("request_id", payload.RequestID).
			Str("to_status", payload.ToStatus).
			Msg("Duplicate status changed event, skipping")
		return nil
	} else {
		marked = true
		if err := h.cache.Expire(ctx, dedupeKey, dedupeTTL); err != nil {
			log.Error().Err(err).Str("key", dedupeKey).Msg("Failed to set dedupe TTL")
		}
	}

	id, err := uuid.Parse(payload.RequestID)
	if err != nil {
		log.Error().Err(err).Str("request_id", payload.RequestID).Msg("Malformed request id in payload")
		h.releaseMarker(ctx, marked, dedupeKey)
		return fmt.Errorf("parse request id: %w", err)
	}
	ret, err := h.returnRepo.GetByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("request_id", payload.RequestID).Msg("Return request not found")
		h.releaseMarker(ctx, marked, dedupeKey)
		return fmt.Errorf("load return request: %w", err)
	}

	subject, body := buildStatusEmail(payload, ret.ProductTitle)
	if err := h.emailService.SendEmail(ctx, email.EmailRequest{
		To:      []string{ret.RequestedBy},
		Subject: subject,
		Body:    body,
	}); err != nil {
		log.Error().Err(err).Str("request_id", payload.RequestID).Msg("Failed to send status email")
		h.releaseMarker(ctx, marked, dedupeKey)
		return fmt.Errorf("send status email: %w", err)
	}

	log.Info().
		Str("request_id", payload.RequestID).
		Str("from_status", payload.FromStatus).
		Str("to_status", payload.ToStatus).
		Msg("Status changed notification sent")
	return nil
}

// releaseMarker gives the delivery marker back so the asynq retry of a
// failed delivery is not dropped as a duplicate
func (h *StatusChangedHandler) releaseMarker(ctx context.Context, marked bool, key string) {
	if !marked {
		return
	}
	if err := h.cache.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to release dedupe marker")
	}
}

func buildStatusEmail(p shared.StatusChangedPayload, productTitle string) (string, string) {
	subject := fmt.Sprintf("Your return for order %s is now %s", p.OrderID, p.ToStatus)
	body := fmt.Sprintf(`Hello,

Your return request for "%s" (order %s) has been updated:

- Previous status: %s
- Current status:  %s
- Updated at:      %s

Reply to this email if anything looks wrong.

Returns Team`,
		productTitle, p.OrderID, p.FromStatus, p.ToStatus,
		p.OccurredAt.Format("2006-01-02 15:04:05"))
	return subject, body
}
