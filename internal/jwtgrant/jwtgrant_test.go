package jwtgrant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qualinova/pkg/domain-errors"
)

func newService() *Service {
	return NewService("test-signing-key", "qualinova-test")
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newService()

	token, err := svc.GenerateAccessToken("issuer-1", time.Minute)
	require.NoError(t, err)

	identity, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "issuer-1", identity.String())
}

func TestGrantTokenRoundTrip(t *testing.T) {
	svc := newService()

	token, err := svc.GenerateGrantToken("owner-o", ActionAcceptCertificate, time.Minute)
	require.NoError(t, err)

	identity, err := svc.ValidateGrant(token, ActionAcceptCertificate)
	require.NoError(t, err)
	assert.Equal(t, "owner-o", identity.String())
}

// Grant tokens must not authenticate as callers and access tokens must not
// act as grants; the audiences keep the two kinds apart.
func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	svc := newService()

	grant, err := svc.GenerateGrantToken("owner-o", ActionTransferOut, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(grant)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	access, err := svc.GenerateAccessToken("owner-o", time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateGrant(access, ActionTransferOut)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestGrantActionMustMatch(t *testing.T) {
	svc := newService()

	token, err := svc.GenerateGrantToken("owner-o", ActionTransferOut, time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateGrant(token, ActionTransferIn)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestExpiredToken(t *testing.T) {
	svc := newService()

	token, err := svc.GenerateAccessToken("issuer-1", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestForeignSigningKey(t *testing.T) {
	token, err := NewService("other-key", "qualinova-test").GenerateAccessToken("issuer-1", time.Minute)
	require.NoError(t, err)

	_, err = newService().ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
