package model

import (
	"time"

	"github.com/google/uuid"
)

// StatusChangedEvent is emitted after every committed transition.
// Delivery is at-least-once; consumers deduplicate on (RequestID, ToStatus).
type StatusChangedEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	OrderID    string    `json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}
