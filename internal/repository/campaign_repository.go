package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/adworldmediaonline/email-cron/internal/errors"
	"github.com/adworldmediaonline/email-cron/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)

	// Dispatch path. Every transition is conditional: the row only changes when
	// its current status equals the expected one, and the bool reports whether
	// the row was actually claimed. Zero rows affected is contention, not an error.
	FindDue(now time.Time, limit int) ([]*model.Campaign, error)
	TransitionStatus(id int, from, to string) (bool, error)
	MarkSent(id int, from string) (bool, error)
	ForceFail(id int) (bool, error)
	Schedule(id int, at time.Time, timezone *string) (bool, error)

	GetRecipientStats(campaignID int) (map[string]int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, subject, body, from_email, from_name, reply_to, status, scheduled_at, timezone, sent_at, user_id, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.Body, &c.FromEmail, &c.FromName, &c.ReplyTo,
		&c.Status, &c.ScheduledAt, &c.Timezone, &c.SentAt, &c.UserID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	query := `
        INSERT INTO campaigns (name, subject, body, from_email, from_name, reply_to, status, scheduled_at, timezone, user_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Name, c.Subject, c.Body, c.FromEmail, c.FromName, c.ReplyTo,
		c.Status, c.ScheduledAt, c.Timezone, c.UserID, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ====================== Dispatch path ======================

// FindDue returns up to limit scheduled campaigns whose scheduled_at has
// passed, oldest first.
func (r *CampaignRepository) FindDue(now time.Time, limit int) ([]*model.Campaign, error) {
	query := `
        SELECT ` + campaignColumns + `
        FROM campaigns
        WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
        ORDER BY scheduled_at ASC
        LIMIT $3
    `
	rows, err := r.DB.Query(query, model.CampaignStatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// TransitionStatus performs the conditional status update that all claims and
// terminal transitions go through. Returns false when another invocation got
// there first.
func (r *CampaignRepository) TransitionStatus(id int, from, to string) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := r.DB.Exec(query, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSent transitions from -> sent and stamps sent_at in the same statement.
func (r *CampaignRepository) MarkSent(id int, from string) (bool, error) {
	query := `UPDATE campaigns SET status=$1, sent_at=NOW(), updated_at=NOW() WHERE id=$2 AND status=$3`
	res, err := r.DB.Exec(query, model.CampaignStatusSent, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ForceFail moves a campaign to failed from either pre-terminal state. Used on
// unexpected errors mid-cycle so the campaign does not stay stuck in sending.
func (r *CampaignRepository) ForceFail(id int) (bool, error) {
	query := `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status IN ($3, $4)`
	res, err := r.DB.Exec(query, model.CampaignStatusFailed, id, model.CampaignStatusScheduled, model.CampaignStatusSending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Schedule moves a draft campaign onto the dispatch calendar. Conditional on
// the campaign still being a draft, so scheduling cannot clobber a campaign
// the engine already picked up.
func (r *CampaignRepository) Schedule(id int, at time.Time, timezone *string) (bool, error) {
	query := `
        UPDATE campaigns
        SET status=$1, scheduled_at=$2, timezone=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5
    `
	res, err := r.DB.Exec(query, model.CampaignStatusScheduled, at, timezone, id, model.CampaignStatusDraft)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CampaignRepository) GetRecipientStats(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"pending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
