package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/allisson/lightldap/internal/database"
	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

const userColumnsSelect = `u.user_id, u.email, u.display_name, u.first_name, u.last_name, u.uuid, u.created_at, u.updated_at`

// SQLUserRepository persists users and their attribute values.
type SQLUserRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLUserRepository creates a new SQLUserRepository.
func NewSQLUserRepository(db *sql.DB, dialect database.Dialect) *SQLUserRepository {
	return &SQLUserRepository{
		db:      db,
		dialect: dialect,
	}
}

// Create inserts the user row and its attributes. Must run inside a transaction when
// attributes are present so that a failure leaves nothing behind.
func (r *SQLUserRepository) Create(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO users (user_id, email, display_name, first_name, last_name, uuid, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		user.ID,
		user.Email,
		user.DisplayName,
		user.FirstName,
		user.LastName,
		user.UUID.String(),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Storage(err, "failed to create user")
	}

	for _, name := range sortedKeys(user.Attributes) {
		if err := r.SetAttribute(ctx, user.ID, name, user.Attributes[name]); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a user with attributes and group ids.
func (r *SQLUserRepository) Get(ctx context.Context, userID string) (*domain.User, error) {
	users, err := r.list(ctx, compiledFilter{where: "u.user_id = ?", args: []any{userID}})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return users[0], nil
}

// Exists reports whether a user row exists. Used for referential checks.
func (r *SQLUserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	var one int
	err := querier.QueryRowContext(ctx, r.dialect.Rebind(`SELECT 1 FROM users WHERE user_id = ?`), userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.Storage(err, "failed to check user")
	}
	return true, nil
}

// List returns the users matching filter ordered by user id. declared holds the names of
// the custom attributes the filter may reference.
func (r *SQLUserRepository) List(
	ctx context.Context,
	filter *domain.Filter,
	declared map[string]struct{},
) ([]*domain.User, error) {
	compiled, err := compileUserFilter(filter, declared)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, compiled)
}

// Update writes the built-in fields of the user and bumps updated_at.
func (r *SQLUserRepository) Update(ctx context.Context, user *domain.User) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE users SET email = ?, display_name = ?, first_name = ?, last_name = ?, updated_at = ?
			  WHERE user_id = ?`

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		user.Email,
		user.DisplayName,
		user.FirstName,
		user.LastName,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return apperrors.Storage(err, "failed to update user")
	}
	return requireAffected(result, domain.ErrUserNotFound)
}

// Delete removes the user and every row referencing it. Must run inside a transaction.
func (r *SQLUserRepository) Delete(ctx context.Context, userID string) error {
	querier := database.GetTx(ctx, r.db)

	for _, query := range []string{
		`DELETE FROM memberships WHERE user_id = ?`,
		`DELETE FROM user_attributes WHERE user_id = ?`,
		`DELETE FROM password_envelopes WHERE user_id = ?`,
		`DELETE FROM session_tokens WHERE user_id = ?`,
	} {
		if _, err := querier.ExecContext(ctx, r.dialect.Rebind(query), userID); err != nil {
			return apperrors.Storage(err, "failed to delete user references")
		}
	}

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM users WHERE user_id = ?`), userID)
	if err != nil {
		return apperrors.Storage(err, "failed to delete user")
	}
	return requireAffected(result, domain.ErrUserNotFound)
}

// SetAttribute replaces the value of one attribute. Must run inside a transaction.
func (r *SQLUserRepository) SetAttribute(ctx context.Context, userID, name, value string) error {
	if err := r.UnsetAttribute(ctx, userID, name); err != nil {
		return err
	}

	querier := database.GetTx(ctx, r.db)
	_, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`INSERT INTO user_attributes (user_id, name, value) VALUES (?, ?, ?)`),
		userID, name, value,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to set user attribute")
	}
	return nil
}

// UnsetAttribute removes one attribute. Removing an absent attribute is a no-op.
func (r *SQLUserRepository) UnsetAttribute(ctx context.Context, userID, name string) error {
	querier := database.GetTx(ctx, r.db)
	_, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM user_attributes WHERE user_id = ? AND name = ?`),
		userID, name,
	)
	if err != nil {
		return apperrors.Storage(err, "failed to unset user attribute")
	}
	return nil
}

// list runs the user query then fills attributes and groups with one query each, reusing
// the same predicate.
func (r *SQLUserRepository) list(ctx context.Context, filter compiledFilter) ([]*domain.User, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + userColumnsSelect + ` FROM users u WHERE ` + filter.where + ` ORDER BY u.user_id`
	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), filter.args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list users")
	}
	defer func() {
		_ = rows.Close()
	}()

	var users []*domain.User
	byID := make(map[string]*domain.User)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.DisplayName,
			&user.FirstName,
			&user.LastName,
			&user.UUID,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, apperrors.Storage(err, "failed to scan user")
		}
		user.Attributes = make(map[string]string)
		user.Groups = []string{}
		users = append(users, &user)
		byID[user.ID] = &user
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate users")
	}
	if len(users) == 0 {
		return users, nil
	}

	subquery := `SELECT u.user_id FROM users u WHERE ` + filter.where

	if err := r.fillAttributes(ctx, querier, subquery, filter.args, byID); err != nil {
		return nil, err
	}
	if err := r.fillGroups(ctx, querier, subquery, filter.args, byID); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *SQLUserRepository) fillAttributes(
	ctx context.Context,
	querier database.Querier,
	subquery string,
	args []any,
	byID map[string]*domain.User,
) error {
	query := `SELECT user_id, name, value FROM user_attributes WHERE user_id IN (` + subquery + `)`
	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return apperrors.Storage(err, "failed to list user attributes")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var userID, name, value string
		if err := rows.Scan(&userID, &name, &value); err != nil {
			return apperrors.Storage(err, "failed to scan user attribute")
		}
		if user, ok := byID[userID]; ok {
			user.Attributes[name] = value
		}
	}
	if err := rows.Err(); err != nil {
		return apperrors.Storage(err, "failed to iterate user attributes")
	}
	return nil
}

func (r *SQLUserRepository) fillGroups(
	ctx context.Context,
	querier database.Querier,
	subquery string,
	args []any,
	byID map[string]*domain.User,
) error {
	query := `SELECT user_id, group_id FROM memberships WHERE user_id IN (` + subquery + `) ORDER BY group_id`
	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return apperrors.Storage(err, "failed to list user groups")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var userID, groupID string
		if err := rows.Scan(&userID, &groupID); err != nil {
			return apperrors.Storage(err, "failed to scan membership")
		}
		if user, ok := byID[userID]; ok {
			user.Groups = append(user.Groups, groupID)
		}
	}
	if err := rows.Err(); err != nil {
		return apperrors.Storage(err, "failed to iterate memberships")
	}
	return nil
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

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
