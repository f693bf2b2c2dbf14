// Package repository provides SQL persistence for refresh tokens and password envelopes.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	"github.com/allisson/lightldap/internal/database"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// SQLTokenRepository persists refresh token records.
type SQLTokenRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLTokenRepository creates a new SQLTokenRepository.
func NewSQLTokenRepository(db *sql.DB, dialect database.Dialect) *SQLTokenRepository {
	return &SQLTokenRepository{
		db:      db,
		dialect: dialect,
	}
}

// Create inserts a new token record.
func (r *SQLTokenRepository) Create(ctx context.Context, token *authDomain.SessionToken) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO session_tokens (id, token_hash, user_id, expires_at, revoked_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		token.ID.String(),
		token.TokenHash,
		token.UserID,
		token.ExpiresAt,
		token.RevokedAt,
		token.CreatedAt,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to create session token")
	}
	return nil
}

// GetByTokenHash retrieves a token record by the hash of the refresh token. Returns
// ErrTokenNotFound if no record matches.
func (r *SQLTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.SessionToken, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, token_hash, user_id, expires_at, revoked_at, created_at
			  FROM session_tokens WHERE token_hash = ?`

	var token authDomain.SessionToken
	err := querier.QueryRowContext(ctx, r.dialect.Rebind(query), tokenHash).Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrTokenNotFound
		}
		return nil, apperrors.Storage(err, "failed to get session token")
	}
	return &token, nil
}

// Delete removes a token record. Returns ErrTokenNotFound when nothing was deleted, which
// lets two concurrent refreshes of the same token race safely inside their transactions.
func (r *SQLTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM session_tokens WHERE id = ?`), id.String())
	if err != nil {
		return apperrors.Storage(err, "failed to delete session token")
	}
	return requireAffected(result, authDomain.ErrTokenNotFound)
}

// Revoke marks a token record as revoked.
func (r *SQLTokenRepository) Revoke(ctx context.Context, id uuid.UUID, revokedAt time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE session_tokens SET revoked_at = ? WHERE id = ?`
	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query), revokedAt, id.String())
	if err != nil {
		return apperrors.Storage(err, "failed to revoke session token")
	}
	return requireAffected(result, authDomain.ErrTokenNotFound)
}

// DeleteExpired removes every record that expired before the given time and returns how
// many were removed.
func (r *SQLTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM session_tokens WHERE expires_at < ?`),
		before,
	)
	if err != nil {
		return 0, apperrors.Storage(err, "failed to delete expired session tokens")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Storage(err, "failed to read affected rows")
	}
	return count, nil
}

// requireAffected maps "no row changed" to notFound.
func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Storage(err, "failed to read affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
