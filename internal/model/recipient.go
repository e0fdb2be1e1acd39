// internal/model/recipient.go
package model

import "time"

// Recipient statuses.
const (
	RecipientStatusPending = "pending"
	RecipientStatusSent    = "sent"
	RecipientStatusFailed  = "failed"
)

type Recipient struct {
	ID                int        `db:"id" json:"id"`
	CampaignID        int        `db:"campaign_id" json:"campaign_id"`
	Email             string     `db:"email" json:"email"`
	Name              string     `db:"name" json:"name,omitempty"`
	Status            string     `db:"status" json:"status"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	ErrorMessage      string     `db:"error_message" json:"error_message,omitempty"`
	ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	LastEvent         string     `db:"last_event" json:"last_event,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}
