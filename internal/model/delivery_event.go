// internal/model/delivery_event.go
package model

import "time"

// DeliveryEvent stores provider webhook payloads with deduplication metadata
// for idempotent processing. EventID is the provider's external event identity
// and is unique; replays of the same event are detected through it.
type DeliveryEvent struct {
	ID                int       `db:"id" json:"id"`
	EventID           string    `db:"event_id" json:"event_id"`
	EventType         string    `db:"event_type" json:"event_type"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id"`
	Payload           string    `db:"payload" json:"payload"`
	ReceivedAt        time.Time `db:"received_at" json:"received_at"`
}
