package repository

import (
	"context"
	"database/sql"
	"errors"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	"github.com/allisson/lightldap/internal/database"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// SQLPasswordRepository persists password envelopes, one per user.
type SQLPasswordRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLPasswordRepository creates a new SQLPasswordRepository.
func NewSQLPasswordRepository(db *sql.DB, dialect database.Dialect) *SQLPasswordRepository {
	return &SQLPasswordRepository{
		db:      db,
		dialect: dialect,
	}
}

// Upsert stores the envelope, replacing any previous one. Must run inside a transaction so
// that the user never ends up without an envelope.
func (r *SQLPasswordRepository) Upsert(ctx context.Context, envelope *authDomain.PasswordEnvelope) error {
	querier := database.GetTx(ctx, r.db)

	if _, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM password_envelopes WHERE user_id = ?`),
		envelope.UserID,
	); err != nil {
		return apperrors.Storage(err, "failed to replace password envelope")
	}

	_, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`INSERT INTO password_envelopes (user_id, envelope, updated_at) VALUES (?, ?, ?)`),
		envelope.UserID,
		envelope.Envelope,
		envelope.UpdatedAt,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to store password envelope")
	}
	return nil
}

// Get returns the envelope of a user. Returns ErrEnvelopeNotFound when the user never
// registered a password.
func (r *SQLPasswordRepository) Get(ctx context.Context, userID string) (*authDomain.PasswordEnvelope, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT user_id, envelope, updated_at FROM password_envelopes WHERE user_id = ?`

	var envelope authDomain.PasswordEnvelope
	err := querier.QueryRowContext(ctx, r.dialect.Rebind(query), userID).Scan(
		&envelope.UserID,
		&envelope.Envelope,
		&envelope.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrEnvelopeNotFound
		}
		return nil, apperrors.Storage(err, "failed to get password envelope")
	}
	return &envelope, nil
}
