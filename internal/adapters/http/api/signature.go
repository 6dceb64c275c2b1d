package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// signatureHeaders are accepted in order; the first non-empty one wins.
// X-Hub-Signature-256 keeps GitHub-style senders working.
var signatureHeaders = []string{ //nolint:gochecknoglobals // fixed header list
	"X-Signature",
	"X-Webhook-Signature",
	"X-Hub-Signature-256",
}

const signaturePrefix = "sha256="

// SignatureVerifier authenticates webhook bodies with HMAC-SHA256.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier over the shared secret.
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Verify checks the request signature against the raw body. A missing
// server secret is reported before any header is consulted so a
// misconfigured deployment cannot silently accept unsigned traffic.
func (v *SignatureVerifier) Verify(h http.Header, body []byte) error {
	if len(v.secret) == 0 {
		return ErrServerMisconfigured
	}

	var provided string
	for _, name := range signatureHeaders {
		if s := h.Get(name); s != "" {
			provided = s
			break
		}
	}
	if provided == "" {
		return ErrMissingSignature
	}
	provided = strings.ToLower(strings.TrimPrefix(provided, signaturePrefix))

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(provided), []byte(want)) {
		return ErrUnauthorized
	}
	return nil
}

// Sign computes the hex signature for a body, for outbound test senders.
func (v *SignatureVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
