// Package crypto signs persisted alerts so downstream tooling can detect
// tampering between the engine and the compliance workflow.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/banking/aml-engine/internal/domain"
)

// AlertSigner produces and verifies HMAC-SHA256 signatures over the
// immutable fields of an alert.
type AlertSigner struct {
	secret []byte
}

// NewAlertSigner creates a signer from the configured secret.
func NewAlertSigner(secret string) (*AlertSigner, error) {
	if secret == "" {
		return nil, errors.New("alert HMAC secret is required")
	}
	return &AlertSigner{secret: []byte(secret)}, nil
}

// HMAC computes the hex-encoded HMAC-SHA256 of the data.
func (s *AlertSigner) HMAC(data string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyHMAC checks a signature in constant time.
func (s *AlertSigner) VerifyHMAC(data, signature string) bool {
	expected := s.HMAC(data)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignAlert computes the signature over the alert's immutable fields.
func (s *AlertSigner) SignAlert(a *domain.Alert) string {
	return s.HMAC(alertSigningData(a))
}

// VerifyAlert checks the alert's stored signature against its fields.
func (s *AlertSigner) VerifyAlert(a *domain.Alert) bool {
	return s.VerifyHMAC(alertSigningData(a), a.Signature)
}

func alertSigningData(a *domain.Alert) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		a.ID,
		a.AccountID,
		a.Severity,
		strconv.Itoa(a.Score),
		a.Timestamp.UTC().Format(time.RFC3339),
	)
}
