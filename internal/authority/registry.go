// Package authority talks to the external authority registry that tracks
// which issuing organizations are active and what achievement types they may
// certify. The registry is outside this service's trust boundary, so every
// call can fail; the verification engine treats failures as soft negatives.
package authority

import (
	"context"
	"crypto/ed25519"

	"qualinova/pkg/domain"
)

// Status is the registry's view of an authority.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// Info is the full authority record the primary lookup returns.
type Info struct {
	Identity     domain.Identity
	PublicKey    ed25519.PublicKey
	AllowedTypes []string
	Status       Status
}

// Allows reports whether the authority may certify the achievement type. An
// empty allowed list means unrestricted.
func (i Info) Allows(achievementType string) bool {
	if len(i.AllowedTypes) == 0 {
		return true
	}
	for _, t := range i.AllowedTypes {
		if t == achievementType {
			return true
		}
	}
	return false
}

// Registry is the lookup surface the verification engine depends on.
// GetAuthorityInfo is the primary, one-round-trip path; IsActive and
// IsAllowedType form the fallback chain when the primary fails.
type Registry interface {
	GetAuthorityInfo(ctx context.Context, issuer domain.Identity) (Info, error)
	IsActive(ctx context.Context, issuer domain.Identity) (bool, error)
	IsAllowedType(ctx context.Context, issuer domain.Identity, achievementType string) (bool, error)
	// PublicKey returns the issuer's signing key without the rest of the
	// record; used by the signature check when the full info lookup failed.
	PublicKey(ctx context.Context, issuer domain.Identity) (ed25519.PublicKey, error)
}
