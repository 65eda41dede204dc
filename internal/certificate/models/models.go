package models

import (
	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

// Metadata describes what a certificate attests. AdditionalData holds
// auxiliary keyed digests (evidence documents, attachments) that are folded
// into neither the id nor the signed message.
type Metadata struct {
	Title           string
	Description     string
	AchievementType string
	AdditionalData  map[string]domain.Digest
}

// Validate enforces the required metadata fields at trust boundaries.
func (m Metadata) Validate() error {
	if m.Title == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "metadata title is required")
	}
	if m.AchievementType == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "metadata achievement type is required")
	}
	return nil
}

// Certificate is the persisted record. ID, Issuer, and Signature are
// immutable after issuance; Owner changes only through transfer; Revoked only
// transitions false to true.
type Certificate struct {
	ID        domain.CertificateID
	Owner     domain.Identity
	Issuer    domain.Identity
	Metadata  Metadata
	IssuedAt  uint64
	ExpiresAt *uint64
	Revoked   bool
	Signature []byte
}

// SignatureSize is the expected ed25519 signature length.
const SignatureSize = 64

// Validate checks structural invariants before the record is stored.
func (c Certificate) Validate() error {
	if c.ID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "certificate id must not be zero")
	}
	if c.Owner.IsZero() || c.Issuer.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "owner and issuer are required")
	}
	if len(c.Signature) != SignatureSize {
		return dErrors.New(dErrors.CodeInvalidInput, "signature must be 64 bytes")
	}
	return c.Metadata.Validate()
}
