// internal/model/campaign.go
package model

import "time"

// Campaign statuses, stored as lowercase strings in the DB.
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
	CampaignStatusFailed    = "failed"
)

type Campaign struct {
	ID          int        `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Subject     string     `db:"subject" json:"subject"`
	Body        string     `db:"body" json:"body"`
	FromEmail   string     `db:"from_email" json:"from_email"`
	FromName    string     `db:"from_name" json:"from_name"`
	ReplyTo     *string    `db:"reply_to" json:"reply_to,omitempty"`
	Status      string     `db:"status" json:"status"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Timezone    *string    `db:"timezone" json:"timezone,omitempty"` // display only, never compared against
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	UserID      int        `db:"user_id" json:"user_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// IsTerminal reports whether no further automated transition applies.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusSent || c.Status == CampaignStatusFailed
}
