// internal/webhook/reconciler.go
package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	appErrors "github.com/adworldmediaonline/email-cron/internal/errors"
	"github.com/adworldmediaonline/email-cron/internal/model"
)

// Delivery-lifecycle event types the reconciler projects onto recipients.
// Anything else is acknowledged and discarded.
var recognizedEventTypes = map[string]bool{
	"email.sent":             true,
	"email.delivered":        true,
	"email.delivery_delayed": true,
	"email.complained":       true,
	"email.opened":           true,
	"email.clicked":          true,
	"email.bounced":          true,
	"email.failed":           true,
}

// Failure-class events additionally flip the recipient to failed.
var failureEventTypes = map[string]bool{
	"email.bounced": true,
	"email.failed":  true,
}

// DeliveryEventStore is the slice of the delivery-event repository the
// reconciler needs.
type DeliveryEventStore interface {
	Exists(eventID string) (bool, error)
	Create(ev *model.DeliveryEvent) error
}

type RecipientUpdater interface {
	ApplyDeliveryEvent(providerMessageID, lastEvent string, failed bool, errorMessage string) (int64, error)
}

// EventPublisher fans reconciled events out to downstream consumers.
// Optional; a nil publisher disables fanout.
type EventPublisher interface {
	Publish(ev *model.DeliveryEvent) error
}

type eventPayload struct {
	Type string `json:"type"`
	Data struct {
		EmailID string `json:"email_id"`
		Reason  string `json:"reason"`
		Bounce  struct {
			Message string `json:"message"`
		} `json:"bounce"`
	} `json:"data"`
}

// Reconciler consumes signed provider callbacks and projects them onto
// recipient state, idempotently via the event's external identity.
type Reconciler struct {
	Verifier   *Verifier
	Events     DeliveryEventStore
	Recipients RecipientUpdater
	Publisher  EventPublisher
	Logger     zerolog.Logger
}

func NewReconciler(verifier *Verifier, events DeliveryEventStore, recipients RecipientUpdater, publisher EventPublisher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		Verifier:   verifier,
		Events:     events,
		Recipients: recipients,
		Publisher:  publisher,
		Logger:     logger,
	}
}

// Handle processes one inbound delivery event. A nil return means the request
// was accepted (including the idempotent-replay and unrecognized-type cases).
// Errors returned before the event record is persisted never leave state
// behind; errors after persistence are logged only, since redelivery is
// already deduplicated.
func (r *Reconciler) Handle(body []byte, header http.Header) error {
	if err := r.Verifier.Verify(body, header); err != nil {
		return err
	}

	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("%w: %v", appErrors.ErrInvalidPayload, err)
	}

	if !recognizedEventTypes[payload.Type] {
		r.Logger.Debug().Str("event_type", payload.Type).Msg("ignoring unrecognized event type")
		return nil
	}
	if payload.Data.EmailID == "" {
		return fmt.Errorf("%w: missing email_id", appErrors.ErrInvalidPayload)
	}

	eventID := header.Get(HeaderID)
	exists, err := r.Events.Exists(eventID)
	if err != nil {
		return fmt.Errorf("checking event %s: %w", eventID, err)
	}
	if exists {
		r.Logger.Debug().Str("event_id", eventID).Msg("duplicate delivery event, acknowledging")
		return nil
	}

	event := &model.DeliveryEvent{
		EventID:           eventID,
		EventType:         payload.Type,
		ProviderMessageID: payload.Data.EmailID,
		Payload:           string(body),
	}
	if err := r.Events.Create(event); err != nil {
		return fmt.Errorf("storing event %s: %w", eventID, err)
	}

	// Past this point the event record exists, so a failed projection is
	// recoverable by provider redelivery; log and acknowledge.
	label := strings.TrimPrefix(payload.Type, "email.")
	failed := failureEventTypes[payload.Type]
	errMsg := ""
	if failed {
		errMsg = payload.Data.Bounce.Message
		if errMsg == "" {
			errMsg = payload.Data.Reason
		}
		if errMsg == "" {
			errMsg = label
		}
	}

	updated, err := r.Recipients.ApplyDeliveryEvent(payload.Data.EmailID, label, failed, errMsg)
	if err != nil {
		r.Logger.Error().Err(err).
			Str("event_id", eventID).
			Str("provider_message_id", payload.Data.EmailID).
			Msg("failed to update recipient from delivery event")
		return nil
	}
	if updated == 0 {
		r.Logger.Warn().
			Str("provider_message_id", payload.Data.EmailID).
			Msg("delivery event matched no recipients")
	}

	if r.Publisher != nil {
		if err := r.Publisher.Publish(event); err != nil {
			r.Logger.Error().Err(err).Str("event_id", eventID).Msg("failed to fan out delivery event")
		}
	}

	r.Logger.Info().
		Str("event_id", eventID).
		Str("event_type", payload.Type).
		Int64("recipients_updated", updated).
		Msg("delivery event reconciled")

	return nil
}
