package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"returns-backend/internal/domains/returns/model"
	"returns-backend/internal/domains/returns/service"
	"returns-backend/internal/shared"
)

// AsynqPublisher delivers domain events through the asynq broker. Tasks are
// enqueued after the transition commits, so a broker outage can delay
// notification but never roll back a transition.
type AsynqPublisher struct {
	client *asynq.Client
}

func NewAsynqPublisher(client *asynq.Client) service.EventPublisher {
	return &AsynqPublisher{client: client}
}

func (p *AsynqPublisher) PublishStatusChanged(ctx context.Context, event model.StatusChangedEvent) error {
	payload := shared.StatusChangedPayload{
		RequestID:  event.RequestID.String(),
		OrderID:    event.OrderID,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
		Actor:      event.Actor,
		OccurredAt: event.OccurredAt,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal status changed payload: %w", err)
	}

	task := asynq.NewTask(shared.TypeReturnStatusChanged, b)
	if _, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueNotifications),
		asynq.MaxRetry(5),
	); err != nil {
		return fmt.Errorf("enqueue status changed task: %w", err)
	}
	return nil
}
