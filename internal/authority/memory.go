package authority

import (
	"context"
	"crypto/ed25519"
	"sync"

	"qualinova/pkg/domain"
	dErrors "qualinova/pkg/domain-errors"
)

// InMemory is a Registry backed by a map. Development and test double; it
// can also simulate primary-path outages to exercise the fallback chain.
type InMemory struct {
	mu          sync.RWMutex
	authorities map[domain.Identity]Info
	// FailInfo makes GetAuthorityInfo fail so callers take the fallback
	// chain. IsActive and IsAllowedType keep working.
	FailInfo bool
	// FailAll makes every lookup fail, simulating a registry outage.
	FailAll bool
}

func NewInMemory() *InMemory {
	return &InMemory{authorities: make(map[domain.Identity]Info)}
}

// Register installs or replaces an authority record.
func (r *InMemory) Register(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authorities[info.Identity] = info
}

func (r *InMemory) GetAuthorityInfo(_ context.Context, issuer domain.Identity) (Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailAll || r.FailInfo {
		return Info{}, dErrors.New(dErrors.CodeExternalService, "authority registry unavailable")
	}
	info, ok := r.authorities[issuer]
	if !ok {
		return Info{}, dErrors.New(dErrors.CodeNotFound, "authority not found in registry")
	}
	return info, nil
}

func (r *InMemory) IsActive(_ context.Context, issuer domain.Identity) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailAll {
		return false, dErrors.New(dErrors.CodeExternalService, "authority registry unavailable")
	}
	info, ok := r.authorities[issuer]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "authority not found in registry")
	}
	return info.Status == StatusActive, nil
}

func (r *InMemory) IsAllowedType(_ context.Context, issuer domain.Identity, achievementType string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailAll {
		return false, dErrors.New(dErrors.CodeExternalService, "authority registry unavailable")
	}
	info, ok := r.authorities[issuer]
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "authority not found in registry")
	}
	return info.Allows(achievementType), nil
}

func (r *InMemory) PublicKey(_ context.Context, issuer domain.Identity) (ed25519.PublicKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.FailAll {
		return nil, dErrors.New(dErrors.CodeExternalService, "authority registry unavailable")
	}
	info, ok := r.authorities[issuer]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "authority not found in registry")
	}
	return info.PublicKey, nil
}
