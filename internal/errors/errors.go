// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// Webhook authentication failures. These must be returned before any state
// mutation so a rejected request never leaves a dedupe record behind.
var (
	ErrMissingSignatureHeaders = errors.New("missing webhook signature headers")
	ErrInvalidSignature        = errors.New("invalid webhook signature")
	ErrStaleTimestamp          = errors.New("webhook timestamp outside tolerance")
)

// ErrInvalidPayload marks a webhook body the provider should not redeliver
// (malformed JSON, missing fields). Store failures are deliberately not
// wrapped with it so they surface as retryable.
var ErrInvalidPayload = errors.New("invalid event payload")

// ErrUnauthorized is returned when the trigger surface's pre-shared secret
// does not match.
var ErrUnauthorized = errors.New("unauthorized")
