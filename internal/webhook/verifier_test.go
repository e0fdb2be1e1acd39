package webhook_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/adworldmediaonline/email-cron/internal/errors"
	"github.com/adworldmediaonline/email-cron/internal/webhook"
)

const testSecret = "whsec_dGVzdC1zZWNyZXQtZm9yLXdlYmhvb2tz"

func signedHeaders(v *webhook.Verifier, id string, ts time.Time, body []byte) http.Header {
	timestamp := fmt.Sprintf("%d", ts.Unix())
	h := http.Header{}
	h.Set(webhook.HeaderID, id)
	h.Set(webhook.HeaderTimestamp, timestamp)
	h.Set(webhook.HeaderSignature, v.Sign(id, timestamp, body))
	return h
}

func TestVerifyValidSignature(t *testing.T) {
	v := webhook.NewVerifier(testSecret)
	body := []byte(`{"type":"email.delivered"}`)

	h := signedHeaders(v, "evt_1", time.Now(), body)
	assert.NoError(t, v.Verify(body, h))
}

func TestVerifyTamperedBody(t *testing.T) {
	v := webhook.NewVerifier(testSecret)
	body := []byte(`{"type":"email.delivered"}`)

	h := signedHeaders(v, "evt_1", time.Now(), body)
	err := v.Verify([]byte(`{"type":"email.bounced"}`), h)
	assert.ErrorIs(t, err, appErrors.ErrInvalidSignature)
}

func TestVerifyWrongSecret(t *testing.T) {
	signer := webhook.NewVerifier("whsec_b3RoZXItc2VjcmV0")
	v := webhook.NewVerifier(testSecret)
	body := []byte(`{}`)

	h := signedHeaders(signer, "evt_1", time.Now(), body)
	assert.ErrorIs(t, v.Verify(body, h), appErrors.ErrInvalidSignature)
}

func TestVerifyUnsetSecretRejectsEverything(t *testing.T) {
	v := webhook.NewVerifier("")
	body := []byte(`{"type":"email.bounced"}`)

	// A signature computed over the empty key must not authenticate.
	h := signedHeaders(webhook.NewVerifier(""), "evt_1", time.Now(), body)
	require.ErrorIs(t, v.Verify(body, h), appErrors.ErrInvalidSignature)
}

func TestVerifyMissingHeaders(t *testing.T) {
	v := webhook.NewVerifier(testSecret)
	body := []byte(`{}`)

	h := signedHeaders(v, "evt_1", time.Now(), body)
	for _, name := range []string{webhook.HeaderID, webhook.HeaderTimestamp, webhook.HeaderSignature} {
		broken := h.Clone()
		broken.Del(name)
		assert.ErrorIs(t, v.Verify(body, broken), appErrors.ErrMissingSignatureHeaders, "missing %s", name)
	}
}

func TestVerifyStaleTimestamp(t *testing.T) {
	v := webhook.NewVerifier(testSecret)
	body := []byte(`{}`)

	h := signedHeaders(v, "evt_1", time.Now().Add(-time.Hour), body)
	assert.ErrorIs(t, v.Verify(body, h), appErrors.ErrStaleTimestamp)

	h = signedHeaders(v, "evt_1", time.Now().Add(time.Hour), body)
	assert.ErrorIs(t, v.Verify(body, h), appErrors.ErrStaleTimestamp, "future timestamps are rejected too")
}

func TestVerifyMultipleCandidateSignatures(t *testing.T) {
	v := webhook.NewVerifier(testSecret)
	body := []byte(`{"type":"email.delivered"}`)

	ts := fmt.Sprintf("%d", time.Now().Unix())
	good := v.Sign("evt_1", ts, body)

	h := http.Header{}
	h.Set(webhook.HeaderID, "evt_1")
	h.Set(webhook.HeaderTimestamp, ts)
	h.Set(webhook.HeaderSignature, "v1,Zm9vYmFy "+good)

	require.NoError(t, v.Verify(body, h), "any matching candidate is enough")
}
