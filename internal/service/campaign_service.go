// internal/service/campaign_service.go
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/adworldmediaonline/email-cron/internal/model"
	"github.com/adworldmediaonline/email-cron/internal/repository"
)

type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
}

type RecipientInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type CreateCampaignInput struct {
	Name        string           `json:"name"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	FromEmail   string           `json:"from_email"`
	FromName    string           `json:"from_name"`
	ReplyTo     *string          `json:"reply_to"`
	ScheduledAt *string          `json:"scheduled_at"`
	Timezone    *string          `json:"timezone"`
	UserID      int              `json:"user_id"`
	Recipients  []RecipientInput `json:"recipients"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

// CreateCampaign creates a campaign with its recipient rows. A scheduled_at in
// the input puts it straight into scheduled; otherwise it stays a draft.
func (s *CampaignService) CreateCampaign(input CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, fmt.Errorf("subject cannot be empty")
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, fmt.Errorf("body cannot be empty")
	}
	if strings.TrimSpace(input.FromEmail) == "" {
		return nil, fmt.Errorf("from_email cannot be empty")
	}

	c := &model.Campaign{
		Name:      input.Name,
		Subject:   input.Subject,
		Body:      input.Body,
		FromEmail: input.FromEmail,
		FromName:  input.FromName,
		ReplyTo:   input.ReplyTo,
		Timezone:  input.Timezone,
		UserID:    input.UserID,
		Status:    model.CampaignStatusDraft,
	}

	if input.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *input.ScheduledAt)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduled_at: %w", err)
		}
		utc := t.UTC()
		c.ScheduledAt = &utc
		c.Status = model.CampaignStatusScheduled
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}

	if len(input.Recipients) > 0 {
		recipients := make([]*model.Recipient, len(input.Recipients))
		for i, in := range input.Recipients {
			recipients[i] = &model.Recipient{Email: in.Email, Name: in.Name}
		}
		if err := s.RecipientRepo.CreateBatch(c.ID, recipients); err != nil {
			return nil, fmt.Errorf("creating recipients: %w", err)
		}
	}

	return c, nil
}

// ScheduleCampaign moves a draft onto the calendar. Returns false when the
// campaign was no longer a draft.
func (s *CampaignService) ScheduleCampaign(id int, scheduledAt string, timezone *string) (bool, error) {
	t, err := time.Parse(time.RFC3339, scheduledAt)
	if err != nil {
		return false, fmt.Errorf("invalid scheduled_at: %w", err)
	}
	return s.CampaignRepo.Schedule(id, t.UTC(), timezone)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetails fetches a campaign plus its recipient status counts.
func (s *CampaignService) GetCampaignDetails(id int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	stats, err := s.CampaignRepo.GetRecipientStats(id)
	if err != nil {
		return nil, err
	}

	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// RenderPreview renders the campaign body for one recipient, optionally with
// an override template.
func (s *CampaignService) RenderPreview(campaignID, recipientID int, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}

	rec, err := s.RecipientRepo.GetByID(recipientID)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.CampaignID != campaign.ID {
		return "", fmt.Errorf("recipient not found")
	}

	template := campaign.Body
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	return RenderForRecipient(template, rec), nil
}
