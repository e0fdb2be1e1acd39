// internal/handler/webhook_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	appErrors "github.com/adworldmediaonline/email-cron/internal/errors"
	"github.com/adworldmediaonline/email-cron/internal/webhook"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler receives provider delivery-event callbacks.
type WebhookHandler struct {
	Reconciler *webhook.Reconciler
	Logger     zerolog.Logger
}

// HandleEvent handles POST /api/webhooks/email.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if err := h.Reconciler.Handle(body, r.Header); err != nil {
		switch {
		case errors.Is(err, appErrors.ErrMissingSignatureHeaders),
			errors.Is(err, appErrors.ErrInvalidSignature),
			errors.Is(err, appErrors.ErrStaleTimestamp):
			h.Logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("webhook rejected")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		case errors.Is(err, appErrors.ErrInvalidPayload):
			h.Logger.Warn().Err(err).Msg("webhook payload rejected")
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			// Likely a transient store failure; a 5xx tells the provider
			// to redeliver.
			h.Logger.Error().Err(err).Msg("webhook processing failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "event processing failed"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
