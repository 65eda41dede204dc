package domain

import (
	"encoding/hex"
	"strings"
	"unicode"

	dErrors "qualinova/pkg/domain-errors"
)

// Identity is an opaque reference to a participant (owner, issuer, admin).
// The registry never interprets it beyond equality; the entity registry owns
// the profile behind it.
type Identity string

const maxIdentityLen = 256

// ParseIdentity validates an identity reference at trust boundaries.
// Identities must be non-empty, printable, and bounded in length.
func ParseIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity must not be empty")
	}
	if len(trimmed) > maxIdentityLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity exceeds maximum length")
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "identity contains control characters")
		}
	}
	return Identity(trimmed), nil
}

func (i Identity) IsZero() bool { return i == "" }

func (i Identity) String() string { return string(i) }

// CertificateID is the content-addressed 32-byte certificate identifier.
// It is derived once at issuance and never recomputed.
type CertificateID [32]byte

// ParseCertificateID decodes a 64-char hex string into a CertificateID.
func ParseCertificateID(raw string) (CertificateID, error) {
	var id CertificateID
	decoded, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return id, dErrors.New(dErrors.CodeInvalidInput, "certificate id must be hex encoded")
	}
	if len(decoded) != len(id) {
		return id, dErrors.New(dErrors.CodeInvalidInput, "certificate id must be 32 bytes")
	}
	copy(id[:], decoded)
	return id, nil
}

func (c CertificateID) IsZero() bool { return c == CertificateID{} }

func (c CertificateID) String() string { return hex.EncodeToString(c[:]) }

func (c CertificateID) Bytes() []byte { return c[:] }
