package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Signer computes and checks gateway callback signatures: hex HMAC-SHA256 of
// "<intent_id>|<payment_id>" keyed with the gateway secret.
type Signer struct {
	secret []byte
}

// NewSigner builds a signer for the gateway secret.
func NewSigner(secret string) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("gateway secret required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the expected signature for the pair.
func (s *Signer) Sign(intentID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(intentID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the expected value in constant time.
func (s *Signer) Verify(intentID, paymentID, signature string) bool {
	expected := s.Sign(intentID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
