package audit

import "time"

// Operation names an audited registry action.
type Operation string

const (
	OpInitialized      Operation = "registry_initialized"
	OpAdminTransferred Operation = "admin_transferred"
	OpIssuerAdded      Operation = "issuer_added"
	OpIssuerRemoved    Operation = "issuer_removed"
	OpCertIssued       Operation = "certificate_issued"
	OpCertBatchIssued  Operation = "certificates_batch_issued"
	OpCertTransferred  Operation = "certificate_transferred"
	OpCertRevoked      Operation = "certificate_revoked"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Operation Operation
	SubjectID string
	ActorID   string
	Timestamp time.Time
	// Details carries operation-specific context (old/new owner on transfer,
	// batch size, ...). Values must be caller-safe; no secrets.
	Details map[string]string
}
