package repository

import (
	"database/sql"
	"time"

	"github.com/adworldmediaonline/email-cron/internal/model"
)

type RecipientRepositoryInterface interface {
	CreateBatch(campaignID int, recipients []*model.Recipient) error
	GetByID(id int) (*model.Recipient, error)
	ListPending(campaignID int) ([]*model.Recipient, error)

	// MarkSent and MarkFailed only touch rows still pending; a recipient that
	// already reached sent or failed is never overwritten.
	MarkSent(id int, providerMessageID string) (bool, error)
	MarkFailed(id int, errorMessage string) (bool, error)

	// ApplyDeliveryEvent updates every recipient carrying the given provider
	// message id (normally exactly one) and returns the number touched.
	ApplyDeliveryEvent(providerMessageID, lastEvent string, failed bool, errorMessage string) (int64, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, campaign_id, email, name, status, sent_at, error_message, provider_message_id, last_event, created_at, updated_at`

func scanRecipient(row interface{ Scan(...any) error }) (*model.Recipient, error) {
	var rec model.Recipient
	var sentAt sql.NullTime
	var name, errMsg, providerID, lastEvent sql.NullString
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.Email, &name, &rec.Status, &sentAt,
		&errMsg, &providerID, &lastEvent, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Name = name.String
	rec.ErrorMessage = errMsg.String
	rec.ProviderMessageID = providerID.String
	rec.LastEvent = lastEvent.String
	if sentAt.Valid {
		rec.SentAt = &sentAt.Time
	}
	return &rec, nil
}

// CreateBatch inserts recipient rows for a campaign, all starting out pending.
func (r *RecipientRepository) CreateBatch(campaignID int, recipients []*model.Recipient) error {
	now := time.Now().UTC()
	query := `
        INSERT INTO recipients (campaign_id, email, name, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        RETURNING id
    `
	for _, rec := range recipients {
		rec.CampaignID = campaignID
		rec.Status = model.RecipientStatusPending
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if err := r.DB.QueryRow(query, campaignID, rec.Email, rec.Name, rec.Status, now).Scan(&rec.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *RecipientRepository) GetByID(id int) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id=$1`
	rec, err := scanRecipient(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecipientRepository) ListPending(campaignID int) ([]*model.Recipient, error) {
	query := `
        SELECT ` + recipientColumns + `
        FROM recipients
        WHERE campaign_id=$1 AND status=$2
        ORDER BY id ASC
    `
	rows, err := r.DB.Query(query, campaignID, model.RecipientStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []*model.Recipient{}
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *RecipientRepository) MarkSent(id int, providerMessageID string) (bool, error) {
	query := `
        UPDATE recipients
        SET status=$1, provider_message_id=$2, sent_at=NOW(), error_message=NULL, updated_at=NOW()
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, model.RecipientStatusSent, providerMessageID, id, model.RecipientStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RecipientRepository) MarkFailed(id int, errorMessage string) (bool, error) {
	query := `
        UPDATE recipients
        SET status=$1, error_message=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4
    `
	res, err := r.DB.Exec(query, model.RecipientStatusFailed, errorMessage, id, model.RecipientStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RecipientRepository) ApplyDeliveryEvent(providerMessageID, lastEvent string, failed bool, errorMessage string) (int64, error) {
	var res sql.Result
	var err error
	if failed {
		query := `
            UPDATE recipients
            SET last_event=$1, status=$2, error_message=$3, updated_at=NOW()
            WHERE provider_message_id=$4
        `
		res, err = r.DB.Exec(query, lastEvent, model.RecipientStatusFailed, errorMessage, providerMessageID)
	} else {
		query := `UPDATE recipients SET last_event=$1, updated_at=NOW() WHERE provider_message_id=$2`
		res, err = r.DB.Exec(query, lastEvent, providerMessageID)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
