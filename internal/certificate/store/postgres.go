package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"qualinova/internal/certificate/models"
	"qualinova/pkg/domain"
	"qualinova/pkg/platform/sentinel"
	txcontext "qualinova/pkg/platform/tx"
)

// Postgres persists certificates, both indices, and the issuance counter.
// Index rows carry an explicit position so ordering survives removals: a
// removal deletes the row and renumbers the remainder, which matches the
// filtered-rebuild semantics of the in-memory variant.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the schema. Idempotent; called from main at startup.
func (s *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS certificates (
			id BYTEA PRIMARY KEY,
			owner TEXT NOT NULL,
			issuer TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			achievement_type TEXT NOT NULL,
			additional_data JSONB NOT NULL DEFAULT '{}',
			issued_at BIGINT NOT NULL,
			expires_at BIGINT,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			signature BYTEA NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS owner_index (
			owner TEXT NOT NULL,
			position BIGINT NOT NULL,
			certificate_id BYTEA NOT NULL,
			PRIMARY KEY (owner, certificate_id)
		)`,
		`CREATE INDEX IF NOT EXISTS owner_index_position_idx ON owner_index (owner, position)`,
		`CREATE TABLE IF NOT EXISTS issuer_index (
			issuer TEXT NOT NULL,
			position BIGINT NOT NULL,
			certificate_id BYTEA NOT NULL,
			PRIMARY KEY (issuer, certificate_id)
		)`,
		`CREATE INDEX IF NOT EXISTS issuer_index_position_idx ON issuer_index (issuer, position)`,
		`CREATE TABLE IF NOT EXISTS registry_counters (
			name TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate certificate schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Put(ctx context.Context, cert models.Certificate) error {
	additional, err := marshalAdditionalData(cert.Metadata.AdditionalData)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO certificates
			(id, owner, issuer, title, description, achievement_type, additional_data, issued_at, expires_at, revoked, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		cert.ID.Bytes(), cert.Owner.String(), cert.Issuer.String(),
		cert.Metadata.Title, cert.Metadata.Description, cert.Metadata.AchievementType,
		additional, int64(cert.IssuedAt), expiresValue(cert.ExpiresAt), cert.Revoked, cert.Signature,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id domain.CertificateID) (models.Certificate, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, owner, issuer, title, description, achievement_type, additional_data,
		       issued_at, expires_at, revoked, signature
		FROM certificates WHERE id = $1`, id.Bytes())
	return scanCertificate(row)
}

func (s *Postgres) Update(ctx context.Context, cert models.Certificate) error {
	additional, err := marshalAdditionalData(cert.Metadata.AdditionalData)
	if err != nil {
		return err
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE certificates
		SET owner = $2, title = $3, description = $4, achievement_type = $5,
		    additional_data = $6, expires_at = $7, revoked = $8
		WHERE id = $1`,
		cert.ID.Bytes(), cert.Owner.String(),
		cert.Metadata.Title, cert.Metadata.Description, cert.Metadata.AchievementType,
		additional, expiresValue(cert.ExpiresAt), cert.Revoked,
	)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) AppendToOwnerIndex(ctx context.Context, owner domain.Identity, id domain.CertificateID) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO owner_index (owner, position, certificate_id)
		VALUES ($1, (SELECT COALESCE(MAX(position) + 1, 0) FROM owner_index WHERE owner = $1), $2)`,
		owner.String(), id.Bytes())
	if err != nil {
		return fmt.Errorf("append owner index: %w", err)
	}
	return nil
}

func (s *Postgres) AppendToIssuerIndex(ctx context.Context, issuer domain.Identity, id domain.CertificateID) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO issuer_index (issuer, position, certificate_id)
		VALUES ($1, (SELECT COALESCE(MAX(position) + 1, 0) FROM issuer_index WHERE issuer = $1), $2)`,
		issuer.String(), id.Bytes())
	if err != nil {
		return fmt.Errorf("append issuer index: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveFromOwnerIndex(ctx context.Context, owner domain.Identity, id domain.CertificateID) error {
	q := s.q(ctx)
	if _, err := q.ExecContext(ctx,
		`DELETE FROM owner_index WHERE owner = $1 AND certificate_id = $2`,
		owner.String(), id.Bytes()); err != nil {
		return fmt.Errorf("remove from owner index: %w", err)
	}
	// Renumber so positions stay dense and ordered.
	_, err := q.ExecContext(ctx, `
		WITH renumbered AS (
			SELECT certificate_id,
			       ROW_NUMBER() OVER (ORDER BY position) - 1 AS new_position
			FROM owner_index WHERE owner = $1
		)
		UPDATE owner_index oi
		SET position = r.new_position
		FROM renumbered r
		WHERE oi.owner = $1 AND oi.certificate_id = r.certificate_id`,
		owner.String())
	if err != nil {
		return fmt.Errorf("renumber owner index: %w", err)
	}
	return nil
}

func (s *Postgres) ListByOwner(ctx context.Context, owner domain.Identity, start, limit int) ([]models.Certificate, error) {
	return s.list(ctx, `
		SELECT c.id, c.owner, c.issuer, c.title, c.description, c.achievement_type,
		       c.additional_data, c.issued_at, c.expires_at, c.revoked, c.signature
		FROM owner_index i
		JOIN certificates c ON c.id = i.certificate_id
		WHERE i.owner = $1
		ORDER BY i.position
		OFFSET $2 LIMIT $3`, owner, start, limit)
}

func (s *Postgres) ListByIssuer(ctx context.Context, issuer domain.Identity, start, limit int) ([]models.Certificate, error) {
	return s.list(ctx, `
		SELECT c.id, c.owner, c.issuer, c.title, c.description, c.achievement_type,
		       c.additional_data, c.issued_at, c.expires_at, c.revoked, c.signature
		FROM issuer_index i
		JOIN certificates c ON c.id = i.certificate_id
		WHERE i.issuer = $1
		ORDER BY i.position
		OFFSET $2 LIMIT $3`, issuer, start, limit)
}

func (s *Postgres) list(ctx context.Context, query string, key domain.Identity, start, limit int) ([]models.Certificate, error) {
	if start < 0 || limit < 0 {
		return []models.Certificate{}, nil
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, key.String(), start, limit)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	out := []models.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return out, nil
}

func (s *Postgres) CountByOwner(ctx context.Context, owner domain.Identity) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM owner_index WHERE owner = $1`, owner.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by owner: %w", err)
	}
	return count, nil
}

func (s *Postgres) CountByIssuer(ctx context.Context, issuer domain.Identity) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM issuer_index WHERE issuer = $1`, issuer.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by issuer: %w", err)
	}
	return count, nil
}

func (s *Postgres) IncrementCount(ctx context.Context) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO registry_counters (name, value) VALUES ('certificates', 1)
		ON CONFLICT (name) DO UPDATE SET value = registry_counters.value + 1`)
	if err != nil {
		return fmt.Errorf("increment certificate count: %w", err)
	}
	return nil
}

func (s *Postgres) Count(ctx context.Context) (uint64, error) {
	var value int64
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT value FROM registry_counters WHERE name = 'certificates'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read certificate count: %w", err)
	}
	return uint64(value), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (models.Certificate, error) {
	var (
		idBytes    []byte
		owner      string
		issuer     string
		cert       models.Certificate
		additional []byte
		issuedAt   int64
		expiresAt  sql.NullInt64
	)
	err := row.Scan(&idBytes, &owner, &issuer,
		&cert.Metadata.Title, &cert.Metadata.Description, &cert.Metadata.AchievementType,
		&additional, &issuedAt, &expiresAt, &cert.Revoked, &cert.Signature)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Certificate{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Certificate{}, fmt.Errorf("scan certificate: %w", err)
	}
	copy(cert.ID[:], idBytes)
	cert.Owner = domain.Identity(owner)
	cert.Issuer = domain.Identity(issuer)
	cert.IssuedAt = uint64(issuedAt)
	if expiresAt.Valid {
		expiry := uint64(expiresAt.Int64)
		cert.ExpiresAt = &expiry
	}
	data, err := unmarshalAdditionalData(additional)
	if err != nil {
		return models.Certificate{}, err
	}
	cert.Metadata.AdditionalData = data
	return cert, nil
}

func marshalAdditionalData(data map[string]domain.Digest) ([]byte, error) {
	encoded := make(map[string]string, len(data))
	for k, v := range data {
		encoded[k] = v.String()
	}
	out, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("marshal additional data: %w", err)
	}
	return out, nil
}

func unmarshalAdditionalData(raw []byte) (map[string]domain.Digest, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("unmarshal additional data: %w", err)
	}
	if len(encoded) == 0 {
		return nil, nil
	}
	out := make(map[string]domain.Digest, len(encoded))
	for k, v := range encoded {
		digest, err := domain.ParseDigest(v)
		if err != nil {
			return nil, err
		}
		out[k] = digest
	}
	return out, nil
}

func expiresValue(expiry *uint64) any {
	if expiry == nil {
		return nil
	}
	return int64(*expiry)
}
