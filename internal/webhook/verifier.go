// internal/webhook/verifier.go
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/adworldmediaonline/email-cron/internal/errors"
)

// Signature headers carried by provider webhook requests.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

const defaultTolerance = 5 * time.Minute

// Verifier checks webhook request authenticity. The signed content is
// "<id>.<timestamp>.<body>", HMAC-SHA256 with the shared endpoint secret. The
// signature header may carry several space-separated "v1,<base64>" candidates
// (the provider rotates secrets that way); any one matching is enough.
type Verifier struct {
	secret    []byte
	Tolerance time.Duration
	Now       func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    decodeSecret(secret),
		Tolerance: defaultTolerance,
		Now:       time.Now,
	}
}

// decodeSecret strips the optional whsec_ prefix and base64-decodes the rest;
// a secret that is not base64 is used as raw bytes.
func decodeSecret(secret string) []byte {
	trimmed := strings.TrimPrefix(secret, "whsec_")
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return decoded
	}
	return []byte(trimmed)
}

// Verify authenticates one request. A nil return means the body is genuine
// and fresh. A verifier without a configured secret rejects everything; an
// empty key must never authenticate.
func (v *Verifier) Verify(body []byte, header http.Header) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: endpoint secret not configured", appErrors.ErrInvalidSignature)
	}

	id := header.Get(HeaderID)
	timestamp := header.Get(HeaderTimestamp)
	signature := header.Get(HeaderSignature)
	if id == "" || timestamp == "" || signature == "" {
		return appErrors.ErrMissingSignatureHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", appErrors.ErrInvalidSignature)
	}
	age := v.Now().UTC().Sub(time.Unix(ts, 0))
	if age > v.Tolerance || age < -v.Tolerance {
		return appErrors.ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(signature) {
		parts := strings.SplitN(candidate, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}

	return appErrors.ErrInvalidSignature
}

// Sign produces the signature header value for a body. Used by tests and the
// local development sender.
func (v *Verifier) Sign(id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%s.%s.", id, timestamp)
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
