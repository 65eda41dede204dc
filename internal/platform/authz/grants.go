// Package authz carries the set of identities whose authorization has been
// verified for the current call. Transports validate grant tokens and build
// the set; services only check membership, keeping them transport-free.
package authz

import "qualinova/pkg/domain"

// Grants is the set of identities that have co-authorized the current
// operation. The authenticated caller is always included.
type Grants struct {
	members map[domain.Identity]struct{}
}

// NewGrants builds a grant set from verified identities.
func NewGrants(ids ...domain.Identity) Grants {
	g := Grants{members: make(map[domain.Identity]struct{}, len(ids))}
	for _, id := range ids {
		if !id.IsZero() {
			g.members[id] = struct{}{}
		}
	}
	return g
}

// Holds reports whether identity id has authorized this operation.
func (g Grants) Holds(id domain.Identity) bool {
	_, ok := g.members[id]
	return ok
}

// With returns a copy of the set including id.
func (g Grants) With(id domain.Identity) Grants {
	ids := make([]domain.Identity, 0, len(g.members)+1)
	for member := range g.members {
		ids = append(ids, member)
	}
	ids = append(ids, id)
	return NewGrants(ids...)
}
