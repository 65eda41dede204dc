package domain

import (
	"encoding/hex"
	"strings"

	dErrors "qualinova/pkg/domain-errors"
)

// Digest is a SHA-256 digest of external content (evidence documents,
// attachments) referenced from certificate metadata.
type Digest [32]byte

// ParseDigest decodes a 64-char hex string into a Digest.
func ParseDigest(raw string) (Digest, error) {
	var d Digest
	decoded, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return d, dErrors.New(dErrors.CodeInvalidInput, "digest must be hex encoded")
	}
	if len(decoded) != len(d) {
		return d, dErrors.New(dErrors.CodeInvalidInput, "digest must be 32 bytes")
	}
	copy(d[:], decoded)
	return d, nil
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }
