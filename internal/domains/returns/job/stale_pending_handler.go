package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/repository"
	"returns-backend/internal/infrastructure/email"
	"returns-backend/internal/shared"
)

const defaultStaleDays = 3

// StalePendingSweepHandler runs on the maintenance schedule and mails the
// operations inbox a digest of pending returns nobody reviewed in time.
// It reads only; nudging humans beats auto-transitioning money-adjacent state.
type StalePendingSweepHandler struct {
	returnRepo   repository.ReturnRepository
	emailService email.EmailService
	opsEmail     string
}

func NewStalePendingSweepHandler(
	returnRepo repository.ReturnRepository,
	emailService email.EmailService,
	opsEmail string,
) *StalePendingSweepHandler {
	return &StalePendingSweepHandler{
		returnRepo:   returnRepo,
		emailService: emailService,
		opsEmail:     opsEmail,
	}
}

func (h *StalePendingSweepHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.StalePendingSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal StalePendingSweep payload")
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	days := payload.OlderThanDays
	if days <= 0 {
		days = defaultStaleDays
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	status := model.StatusPending.String()
	filter := model.ReturnFilter{
		Status: &status,
		DateTo: &cutoff,
		Limit:  100,
		Sort:   "requested_at_asc",
	}.Normalized()

	stale, total, err := h.returnRepo.List(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list stale pending returns")
		return fmt.Errorf("list stale pending returns: %w", err)
	}
	if total == 0 {
		log.Info().Msg("No stale pending returns found")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d return request(s) have been pending for more than %d day(s):\n\n", total, days)
	for _, ret := range stale {
		fmt.Fprintf(&b, "- %s | order %s | %s | requested %s by %s\n",
			ret.ID, ret.OrderID, ret.ProductTitle,
			ret.RequestedAt.Format("2006-01-02"), ret.RequestedBy)
	}
	if total > len(stale) {
		fmt.Fprintf(&b, "\n...and %d more.\n", total-len(stale))
	}

	if err := h.emailService.SendEmail(ctx, email.EmailRequest{
		To:      []string{h.opsEmail},
		Subject: fmt.Sprintf("[returns] %d pending requests need review", total),
		Body:    b.String(),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to send stale pending digest")
		return fmt.Errorf("send stale pending digest: %w", err)
	}

	log.Info().Int("total", total).Msg("Stale pending digest sent")
	return nil
}
