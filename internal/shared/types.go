package shared

import "time"

// Task types routed through asynq
const (
	TypeReturnStatusChanged = "returns:status_changed"
	TypeStalePendingSweep   = "returns:stale_pending_sweep"
)

// Queue names with worker-side priorities
const (
	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
	QueueDefault       = "default"
)

// StatusChangedPayload is the asynq task body for a committed transition.
// Delivery is at-least-once; handlers deduplicate on (RequestID, ToStatus).
type StatusChangedPayload struct {
	RequestID  string    `json:"request_id"`
	OrderID    string    `json:"order_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StalePendingSweepPayload triggers the periodic pending-returns digest
type StalePendingSweepPayload struct {
	OlderThanDays int `json:"older_than_days"`
}
