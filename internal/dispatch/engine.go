// internal/dispatch/engine.go
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/adworldmediaonline/email-cron/internal/model"
	"github.com/adworldmediaonline/email-cron/internal/provider"
)

// CampaignStore is the slice of the campaign repository the engine needs.
// TransitionStatus, MarkSent and ForceFail are conditional updates: the bool
// reports whether the row actually changed, and false means another concurrent
// invocation got there first.
type CampaignStore interface {
	FindDue(now time.Time, limit int) ([]*model.Campaign, error)
	TransitionStatus(id int, from, to string) (bool, error)
	MarkSent(id int, from string) (bool, error)
	ForceFail(id int) (bool, error)
}

type RecipientStore interface {
	ListPending(campaignID int) ([]*model.Recipient, error)
	MarkSent(id int, providerMessageID string) (bool, error)
	MarkFailed(id int, errorMessage string) (bool, error)
}

// Dispatcher hands a rendered message set to the provider and reports
// per-recipient outcomes in input order.
type Dispatcher interface {
	Dispatch(ctx context.Context, campaignID int, msgs []provider.Message) []provider.Outcome
}

// RenderFunc personalizes a template for one recipient.
type RenderFunc func(template string, rec *model.Recipient) string

// CycleSummary is the aggregate result of one claim cycle. Processed counts
// campaigns claimed by this invocation; Sent and Failed count recipients.
type CycleSummary struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// Engine finds due campaigns, claims them exclusively and drives each to a
// terminal status. All mutual exclusion comes from the store's conditional
// updates; the engine holds no locks, so any number of concurrent invocations
// converge on the same final state.
type Engine struct {
	Campaigns  CampaignStore
	Recipients RecipientStore
	Dispatcher Dispatcher
	Render     RenderFunc

	// Limit caps how many due campaigns one cycle picks up.
	Limit int
	// CampaignDelay is inserted between campaigns to smooth load on the store
	// and provider.
	CampaignDelay time.Duration

	Logger zerolog.Logger
	Now    func() time.Time
}

const (
	DefaultCampaignLimit = 50
	DefaultCampaignDelay = 500 * time.Millisecond
)

func NewEngine(campaigns CampaignStore, recipients RecipientStore, dispatcher Dispatcher, render RenderFunc, logger zerolog.Logger) *Engine {
	return &Engine{
		Campaigns:     campaigns,
		Recipients:    recipients,
		Dispatcher:    dispatcher,
		Render:        render,
		Limit:         DefaultCampaignLimit,
		CampaignDelay: DefaultCampaignDelay,
		Logger:        logger,
		Now:           time.Now,
	}
}

// RunClaimCycle runs one full claim cycle. Safe to call on any schedule and
// from any number of concurrent callers.
func (e *Engine) RunClaimCycle(ctx context.Context) CycleSummary {
	summary := CycleSummary{Errors: []string{}}

	limit := e.Limit
	if limit <= 0 {
		limit = DefaultCampaignLimit
	}

	due, err := e.Campaigns.FindDue(e.Now().UTC(), limit)
	if err != nil {
		e.Logger.Error().Err(err).Msg("failed to query due campaigns")
		summary.Errors = append(summary.Errors, fmt.Sprintf("query due campaigns: %v", err))
		return summary
	}

	for i, campaign := range due {
		// Conditional claim: scheduled -> sending. Losing the race is a normal
		// outcome, another invocation is already on it.
		claimed, err := e.Campaigns.TransitionStatus(campaign.ID, model.CampaignStatusScheduled, model.CampaignStatusSending)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("campaign %d: claim: %v", campaign.ID, err))
			continue
		}
		if !claimed {
			e.Logger.Debug().Int("campaign_id", campaign.ID).Msg("campaign already claimed, skipping")
			continue
		}

		summary.Processed++

		sent, failed, err := e.processClaimed(ctx, campaign)
		summary.Sent += sent
		summary.Failed += failed
		if err != nil {
			e.Logger.Error().Err(err).Int("campaign_id", campaign.ID).Msg("campaign processing failed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("campaign %d: %v", campaign.ID, err))
			if _, ffErr := e.Campaigns.ForceFail(campaign.ID); ffErr != nil {
				e.Logger.Error().Err(ffErr).Int("campaign_id", campaign.ID).Msg("failed to mark campaign failed")
			}
		}

		if i < len(due)-1 {
			if !sleepCtx(ctx, e.CampaignDelay) {
				summary.Errors = append(summary.Errors, "cycle canceled")
				break
			}
		}
	}

	return summary
}

// processClaimed drives one claimed campaign through sending to a terminal
// status and returns recipient-level sent/failed counts.
func (e *Engine) processClaimed(ctx context.Context, campaign *model.Campaign) (sent, failed int, err error) {
	// Re-read pending recipients: the candidate snapshot may be stale relative
	// to concurrent partial progress.
	pending, err := e.Recipients.ListPending(campaign.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending recipients: %w", err)
	}

	if len(pending) == 0 {
		if _, err := e.Campaigns.MarkSent(campaign.ID, model.CampaignStatusSending); err != nil {
			return 0, 0, fmt.Errorf("mark sent: %w", err)
		}
		e.Logger.Info().Int("campaign_id", campaign.ID).Msg("no pending recipients, campaign sent")
		return 0, 0, nil
	}

	from := fmt.Sprintf("%s <%s>", campaign.FromName, campaign.FromEmail)
	msgs := make([]provider.Message, len(pending))
	for i, rec := range pending {
		msg := provider.Message{
			From:    from,
			To:      []string{rec.Email},
			Subject: e.Render(campaign.Subject, rec),
			HTML:    e.Render(campaign.Body, rec),
		}
		if campaign.ReplyTo != nil {
			msg.ReplyTo = *campaign.ReplyTo
		}
		msgs[i] = msg
	}

	outcomes := e.Dispatcher.Dispatch(ctx, campaign.ID, msgs)

	// Reconcile outcomes onto recipients. The pending guard inside MarkSent /
	// MarkFailed means a recipient already settled by a racing invocation is
	// left alone.
	for i, out := range outcomes {
		rec := pending[i]
		if out.OK() {
			applied, err := e.Recipients.MarkSent(rec.ID, out.MessageID)
			if err != nil {
				return sent, failed, fmt.Errorf("mark recipient %d sent: %w", rec.ID, err)
			}
			if applied {
				sent++
			}
		} else {
			applied, err := e.Recipients.MarkFailed(rec.ID, out.Err)
			if err != nil {
				return sent, failed, fmt.Errorf("mark recipient %d failed: %w", rec.ID, err)
			}
			if applied {
				failed++
			}
		}
	}

	// A campaign counts as sent when at least one recipient made it out.
	if sent > 0 {
		if _, err := e.Campaigns.MarkSent(campaign.ID, model.CampaignStatusSending); err != nil {
			return sent, failed, fmt.Errorf("mark sent: %w", err)
		}
	} else {
		if _, err := e.Campaigns.TransitionStatus(campaign.ID, model.CampaignStatusSending, model.CampaignStatusFailed); err != nil {
			return sent, failed, fmt.Errorf("mark failed: %w", err)
		}
	}

	e.Logger.Info().
		Int("campaign_id", campaign.ID).
		Int("sent", sent).
		Int("failed", failed).
		Msg("campaign dispatched")

	return sent, failed, nil
}
