package repository

import (
	"database/sql"
	"time"

	"github.com/adworldmediaonline/email-cron/internal/model"
)

type DeliveryEventRepositoryInterface interface {
	Exists(eventID string) (bool, error)
	Create(ev *model.DeliveryEvent) error
}

type DeliveryEventRepository struct {
	DB *sql.DB
}

// Exists checks whether an event with this external identity was already stored.
func (r *DeliveryEventRepository) Exists(eventID string) (bool, error) {
	query := `SELECT 1 FROM delivery_events WHERE event_id=$1 LIMIT 1`
	var tmp int
	err := r.DB.QueryRow(query, eventID).Scan(&tmp)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *DeliveryEventRepository) Create(ev *model.DeliveryEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO delivery_events (event_id, event_type, provider_message_id, payload, received_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	return r.DB.QueryRow(query, ev.EventID, ev.EventType, ev.ProviderMessageID, ev.Payload, ev.ReceivedAt).Scan(&ev.ID)
}

var _ DeliveryEventRepositoryInterface = (*DeliveryEventRepository)(nil)
