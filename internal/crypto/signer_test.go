package crypto

import (
	"testing"
	"time"

	"github.com/banking/aml-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAlertSignerRequiresSecret(t *testing.T) {
	_, err := NewAlertSigner("")
	assert.Error(t, err)
}

func TestSignAndVerifyAlert(t *testing.T) {
	signer, err := NewAlertSigner("secret")
	require.NoError(t, err)

	a := &domain.Alert{
		ID:        "ALERT-1",
		AccountID: "ACC-1",
		Severity:  domain.SeverityHigh,
		Score:     70,
		Timestamp: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	a.Signature = signer.SignAlert(a)
	assert.True(t, signer.VerifyAlert(a))

	a.Score = 10
	assert.False(t, signer.VerifyAlert(a))
}

func TestVerifyWithDifferentSecret(t *testing.T) {
	s1, err := NewAlertSigner("secret-one")
	require.NoError(t, err)
	s2, err := NewAlertSigner("secret-two")
	require.NoError(t, err)

	a := &domain.Alert{ID: "ALERT-1", AccountID: "ACC-1", Score: 50}
	a.Signature = s1.SignAlert(a)
	assert.False(t, s2.VerifyAlert(a))
}
