package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrSignatureInvalid is returned for a missing secret, a missing
// signature, or a mismatch. All three fail closed.
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// Verifier checks processor webhook signatures: HMAC-SHA256 of the raw
// payload, base64-encoded, compared in constant time.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the inbound signature header against the payload.
func (v *Verifier) Verify(payload []byte, signature string) error {
	if len(v.secret) == 0 || signature == "" {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}
