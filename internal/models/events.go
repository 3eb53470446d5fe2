package models

import "time"

// Event types
const (
	EventTypeOrderCompleted     = "ORDER_COMPLETED"
	EventTypeOrderSuperseded    = "ORDER_SUPERSEDED"
	EventTypeConfirmationIssued = "CONFIRMATION_ISSUED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCompletedEvent published when an order is finalized. Consumed by
// the notification worker; downstream delivery is best-effort and never
// affects the finalization itself.
type OrderCompletedEvent struct {
	BaseEvent
	OrderID      int64  `json:"order_id"`
	OrderUID     int64  `json:"order_uid"`
	Kind         string `json:"kind"`
	ClientID     string `json:"client_id"`
	ContactEmail string `json:"contact_email,omitempty"`
	Summary      string `json:"summary,omitempty"`
}

// OrderSupersededEvent published when a replacement soft-deletes an
// in-progress order.
type OrderSupersededEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
}

// ConfirmationIssuedEvent published when a secret code is sent. Carries
// no secret material; used for audit and delivery-rate dashboards.
type ConfirmationIssuedEvent struct {
	BaseEvent
	ConfirmationID int64  `json:"confirmation_id"`
	ConfirmItem    string `json:"confirm_item"`
	ConfirmItemID  int64  `json:"confirm_item_id"`
	Delivered      bool   `json:"delivered"`
}
