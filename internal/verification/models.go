package verification

import "qualinova/pkg/domain"

// Status is the single verdict derived from the three independent checks.
// Precedence, highest first: Revoked, Suspended, Expired, Valid, Invalid.
type Status string

const (
	StatusRevoked   Status = "revoked"
	StatusSuspended Status = "suspended"
	StatusExpired   Status = "expired"
	StatusValid     Status = "valid"
	StatusInvalid   Status = "invalid"
)

// Report is the ephemeral outcome of one verification call. It is computed
// per query and never persisted.
type Report struct {
	CertificateID  domain.CertificateID
	SignatureValid bool
	ExpiryValid    bool
	AuthorityValid bool
	Status         Status
	VerifiedAt     uint64
}
