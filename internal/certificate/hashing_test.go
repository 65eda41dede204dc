package certificate

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qualinova/internal/certificate/models"
	"qualinova/pkg/domain"
)

func TestGenerateIDDeterministic(t *testing.T) {
	meta := models.Metadata{Title: "Cloud Architecture", AchievementType: "course"}

	first := GenerateID("owner-1", "issuer-1", meta, 1700000000, 42, 0)
	second := GenerateID("owner-1", "issuer-1", meta, 1700000000, 42, 0)

	assert.Equal(t, first, second)
	assert.False(t, first.IsZero())
}

func TestGenerateIDSensitivity(t *testing.T) {
	meta := models.Metadata{Title: "Cloud Architecture", AchievementType: "course"}
	base := GenerateID("owner-1", "issuer-1", meta, 1700000000, 42, 0)

	tests := []struct {
		name string
		id   domain.CertificateID
	}{
		{"different owner", GenerateID("owner-2", "issuer-1", meta, 1700000000, 42, 0)},
		{"different issuer", GenerateID("owner-1", "issuer-2", meta, 1700000000, 42, 0)},
		{"different title", GenerateID("owner-1", "issuer-1", models.Metadata{Title: "Other", AchievementType: "course"}, 1700000000, 42, 0)},
		{"different timestamp", GenerateID("owner-1", "issuer-1", meta, 1700000001, 42, 0)},
		{"different sequence", GenerateID("owner-1", "issuer-1", meta, 1700000000, 43, 0)},
		{"different nonce", GenerateID("owner-1", "issuer-1", meta, 1700000000, 42, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, base, tc.id)
		})
	}
}

// Field boundaries must not be ambiguous: moving a character across the
// owner/issuer boundary has to change the hash.
func TestGenerateIDFieldSeparation(t *testing.T) {
	meta := models.Metadata{Title: "T", AchievementType: "course"}
	a := GenerateID("ab", "c", meta, 1, 1, 0)
	b := GenerateID("a", "bc", meta, 1, 1, 0)
	assert.NotEqual(t, a, b)
}

// Identical batch items under one timestamp and sequence stay distinct as
// long as the per-item nonce increases.
func TestGenerateIDBatchNonceDistinct(t *testing.T) {
	meta := models.Metadata{Title: "Same", AchievementType: "course"}
	seen := make(map[domain.CertificateID]struct{})
	for i := uint32(0); i < 100; i++ {
		id := GenerateID("owner-1", "issuer-1", meta, 1700000000, 7, i)
		_, dup := seen[id]
		require.False(t, dup, "nonce %d produced a duplicate id", i)
		seen[id] = struct{}{}
	}
}

func TestSignedMessageRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	expiry := uint64(1800000000)
	cert := models.Certificate{
		ID:     GenerateID("owner-1", "issuer-1", models.Metadata{Title: "T", AchievementType: "course"}, 1700000000, 1, 0),
		Owner:  "owner-1",
		Issuer: "issuer-1",
		Metadata: models.Metadata{
			Title:           "T",
			Description:     "desc",
			AchievementType: "course",
		},
		IssuedAt:  1700000000,
		ExpiresAt: &expiry,
	}

	signature := ed25519.Sign(priv, SignedMessage(cert))
	assert.True(t, ed25519.Verify(pub, SignedMessage(cert), signature))

	tampered := cert
	tampered.Owner = "owner-2"
	assert.False(t, ed25519.Verify(pub, SignedMessage(tampered), signature))

	unexpired := cert
	unexpired.ExpiresAt = nil
	assert.False(t, ed25519.Verify(pub, SignedMessage(unexpired), signature))
}

func TestSystemClockSequenceAdvances(t *testing.T) {
	clock := NewSystemClock()
	first := clock.Next()
	second := clock.Next()
	assert.Greater(t, second, first)
	assert.NotZero(t, clock.Now())
}
