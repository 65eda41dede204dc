// Package jwtgrant implements the host's caller-authorization primitive.
//
// Two token kinds share the signing key but use distinct audiences:
//   - access tokens authenticate the caller (Authorization header)
//   - grant tokens assert "identity X authorizes action Y" and travel in
//     request bodies when an operation needs more parties than the caller
//     (owner acceptance at issuance, both owners at transfer, outgoing
//     admin at admin handover).
package jwtgrant

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

const (
	audienceAccess = "qualinova"
	audienceGrant  = "qualinova-grant"
)

// Action names what a grant token authorizes.
type Action string

const (
	ActionAcceptCertificate Action = "accept_certificate"
	ActionTransferOut       Action = "transfer_out"
	ActionTransferIn        Action = "transfer_in"
	ActionHandoverAdmin     Action = "handover_admin"
)

// Claims are the JWT claims for both token kinds.
type Claims struct {
	Identity string `json:"identity"`
	Action   string `json:"action,omitempty"`
	jwt.RegisteredClaims
}

// Service creates and validates tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateAccessToken mints a caller token for identity.
func (s *Service) GenerateAccessToken(identity domain.Identity, expiresIn time.Duration) (string, error) {
	return s.sign(identity, "", audienceAccess, expiresIn)
}

// GenerateGrantToken mints a co-authorization token for identity and action.
func (s *Service) GenerateGrantToken(identity domain.Identity, action Action, expiresIn time.Duration) (string, error) {
	return s.sign(identity, action, audienceGrant, expiresIn)
}

func (s *Service) sign(identity domain.Identity, action Action, audience string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Identity: identity.String(),
		Action:   string(action),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken authenticates a caller access token and returns the identity.
// Satisfies middleware.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (domain.Identity, error) {
	claims, err := s.parse(tokenString, audienceAccess)
	if err != nil {
		return "", err
	}
	return domain.ParseIdentity(claims.Identity)
}

// ValidateGrant checks that tokenString is a grant token for the given action
// and returns the granting identity.
func (s *Service) ValidateGrant(tokenString string, action Action) (domain.Identity, error) {
	claims, err := s.parse(tokenString, audienceGrant)
	if err != nil {
		return "", err
	}
	if claims.Action != string(action) {
		return "", dErrors.New(dErrors.CodeUnauthorized, "grant token does not cover this action")
	}
	return domain.ParseIdentity(claims.Identity)
}

func (s *Service) parse(tokenString, audience string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithAudience(audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
