package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"qualinova/pkg/domain"
	"qualinova/pkg/platform/sentinel"
	txcontext "qualinova/pkg/platform/tx"
)

// Postgres persists access-control state: a single admin row and the issuer
// set ordered by insertion.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Migrate creates the schema. Idempotent; called from main at startup.
func (s *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS registry_admin (
			singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			identity TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS registry_issuers (
			identity TEXT PRIMARY KEY,
			added_at BIGSERIAL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate access schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) InitAdmin(ctx context.Context, admin domain.Identity) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO registry_admin (singleton, identity) VALUES (TRUE, $1)
		ON CONFLICT (singleton) DO NOTHING`, admin.String())
	if err != nil {
		return fmt.Errorf("init admin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("init admin: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) GetAdmin(ctx context.Context) (domain.Identity, error) {
	var identity string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT identity FROM registry_admin WHERE singleton`).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get admin: %w", err)
	}
	return domain.Identity(identity), nil
}

func (s *Postgres) SetAdmin(ctx context.Context, admin domain.Identity) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE registry_admin SET identity = $1 WHERE singleton`, admin.String())
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) AddIssuer(ctx context.Context, issuer domain.Identity) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO registry_issuers (identity) VALUES ($1)
		ON CONFLICT (identity) DO NOTHING`, issuer.String())
	if err != nil {
		return false, fmt.Errorf("add issuer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add issuer: %w", err)
	}
	return affected > 0, nil
}

func (s *Postgres) RemoveIssuer(ctx context.Context, issuer domain.Identity) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM registry_issuers WHERE identity = $1`, issuer.String())
	if err != nil {
		return false, fmt.Errorf("remove issuer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove issuer: %w", err)
	}
	return affected > 0, nil
}

func (s *Postgres) HasIssuer(ctx context.Context, issuer domain.Identity) (bool, error) {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registry_issuers WHERE identity = $1)`,
		issuer.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check issuer: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListIssuers(ctx context.Context) ([]domain.Identity, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT identity FROM registry_issuers ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	out := []domain.Identity{}
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, fmt.Errorf("list issuers: %w", err)
		}
		out = append(out, domain.Identity(identity))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	return out, nil
}
