// Package certificate holds the deterministic pieces of the issuance engine:
// the logical clock contract, content-addressed id generation, and the
// canonical message a verifier recomputes before checking a signature.
package certificate

import (
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"
	"time"

	"qualinova/internal/certificate/models"
	"qualinova/pkg/domain"
)

// Clock supplies the host's monotonic primitives. Now is the logical
// timestamp; Next returns a sequence number that changes between calls.
// Deterministic ids come from these instead of a random source.
type Clock interface {
	Now() uint64
	Next() uint64
}

// SystemClock backs the Clock contract with wall time and an atomic counter.
type SystemClock struct {
	seq atomic.Uint64
}

func NewSystemClock() *SystemClock { return &SystemClock{} }

func (c *SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

func (c *SystemClock) Next() uint64 { return c.seq.Add(1) }

// GenerateID derives the content-addressed certificate id.
//
// The hash input concatenates NUL-terminated owner, issuer, and metadata
// strings, then the 8-byte big-endian logical timestamp, the 8-byte
// big-endian sequence, and a 4-byte big-endian per-item nonce. The nonce is
// what keeps ids distinct when a batch issues identical owner/issuer/metadata
// triples under one timestamp and sequence value: callers must increase it
// strictly per item.
func GenerateID(owner, issuer domain.Identity, meta models.Metadata, timestamp, sequence uint64, nonce uint32) domain.CertificateID {
	var data []byte
	data = appendField(data, owner.String())
	data = appendField(data, issuer.String())
	data = appendField(data, meta.Title)
	data = appendField(data, meta.Description)
	data = appendField(data, meta.AchievementType)
	data = binary.BigEndian.AppendUint64(data, timestamp)
	data = binary.BigEndian.AppendUint64(data, sequence)
	data = binary.BigEndian.AppendUint32(data, nonce)
	return domain.CertificateID(sha256.Sum256(data))
}

// SignedMessage recomputes the digest the issuer signed: id bytes, then
// NUL-terminated owner, issuer, and metadata strings, the 8-byte big-endian
// issuance timestamp, and the 8-byte big-endian expiration when set. Field
// order is fixed; changing it invalidates every existing signature.
func SignedMessage(cert models.Certificate) []byte {
	var data []byte
	data = append(data, cert.ID.Bytes()...)
	data = appendField(data, cert.Owner.String())
	data = appendField(data, cert.Issuer.String())
	data = appendField(data, cert.Metadata.Title)
	data = appendField(data, cert.Metadata.Description)
	data = appendField(data, cert.Metadata.AchievementType)
	data = binary.BigEndian.AppendUint64(data, cert.IssuedAt)
	if cert.ExpiresAt != nil {
		data = binary.BigEndian.AppendUint64(data, *cert.ExpiresAt)
	}
	digest := sha256.Sum256(data)
	return digest[:]
}

func appendField(data []byte, field string) []byte {
	data = append(data, field...)
	return append(data, 0)
}
