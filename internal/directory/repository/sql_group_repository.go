package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/lightldap/internal/database"
	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// SQLGroupRepository persists groups and memberships.
type SQLGroupRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLGroupRepository creates a new SQLGroupRepository.
func NewSQLGroupRepository(db *sql.DB, dialect database.Dialect) *SQLGroupRepository {
	return &SQLGroupRepository{
		db:      db,
		dialect: dialect,
	}
}

// Create inserts a group.
func (r *SQLGroupRepository) Create(ctx context.Context, group *domain.Group) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO directory_groups (group_id, display_name, uuid, created_at) VALUES (?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, r.dialect.Rebind(query),
		group.ID,
		group.DisplayName,
		group.UUID.String(),
		group.CreatedAt,
	)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return domain.ErrGroupAlreadyExists
		}
		return apperrors.Storage(err, "failed to create group")
	}
	return nil
}

// Get retrieves a group with its members.
func (r *SQLGroupRepository) Get(ctx context.Context, groupID string) (*domain.Group, error) {
	groups, err := r.list(ctx, compiledFilter{where: "g.group_id = ?", args: []any{groupID}})
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, domain.ErrGroupNotFound
	}
	return groups[0], nil
}

// GetByName retrieves a group by display name.
func (r *SQLGroupRepository) GetByName(ctx context.Context, displayName string) (*domain.Group, error) {
	groups, err := r.list(ctx, compiledFilter{where: "g.display_name = ?", args: []any{displayName}})
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, domain.ErrGroupNotFound
	}
	return groups[0], nil
}

// Exists reports whether a group row exists.
func (r *SQLGroupRepository) Exists(ctx context.Context, groupID string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	var one int
	err := querier.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT 1 FROM directory_groups WHERE group_id = ?`), groupID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.Storage(err, "failed to check group")
	}
	return true, nil
}

// List returns the groups matching filter ordered by display name.
func (r *SQLGroupRepository) List(ctx context.Context, filter *domain.Filter) ([]*domain.Group, error) {
	compiled, err := compileGroupFilter(filter)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, compiled)
}

// ListByUser returns the groups userID belongs to.
func (r *SQLGroupRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Group, error) {
	return r.list(ctx, compiledFilter{
		where: "EXISTS (SELECT 1 FROM memberships m WHERE m.group_id = g.group_id AND m.user_id = ?)",
		args:  []any{userID},
	})
}

// Delete removes a group and its memberships. Must run inside a transaction.
func (r *SQLGroupRepository) Delete(ctx context.Context, groupID string) error {
	querier := database.GetTx(ctx, r.db)

	if _, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM memberships WHERE group_id = ?`), groupID); err != nil {
		return apperrors.Storage(err, "failed to delete group memberships")
	}

	result, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM directory_groups WHERE group_id = ?`), groupID)
	if err != nil {
		return apperrors.Storage(err, "failed to delete group")
	}
	return requireAffected(result, domain.ErrGroupNotFound)
}

// AddMember inserts a membership. An existing membership is left as is.
func (r *SQLGroupRepository) AddMember(ctx context.Context, userID, groupID string) error {
	querier := database.GetTx(ctx, r.db)

	prefix, suffix := r.dialect.InsertIgnore()
	query := prefix + ` memberships (user_id, group_id) VALUES (?, ?)` + suffix

	if _, err := querier.ExecContext(ctx, r.dialect.Rebind(query), userID, groupID); err != nil {
		return apperrors.Storage(err, "failed to add membership")
	}
	return nil
}

// RemoveMember deletes a membership. A missing membership is a no-op.
func (r *SQLGroupRepository) RemoveMember(ctx context.Context, userID, groupID string) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM memberships WHERE user_id = ? AND group_id = ?`), userID, groupID)
	if err != nil {
		return apperrors.Storage(err, "failed to remove membership")
	}
	return nil
}

func (r *SQLGroupRepository) list(ctx context.Context, filter compiledFilter) ([]*domain.Group, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT g.group_id, g.display_name, g.uuid, g.created_at FROM directory_groups g WHERE ` +
		filter.where + ` ORDER BY g.display_name`
	rows, err := querier.QueryContext(ctx, r.dialect.Rebind(query), filter.args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list groups")
	}
	defer func() {
		_ = rows.Close()
	}()

	var groups []*domain.Group
	byID := make(map[string]*domain.Group)
	for rows.Next() {
		var group domain.Group
		if err := rows.Scan(&group.ID, &group.DisplayName, &group.UUID, &group.CreatedAt); err != nil {
			return nil, apperrors.Storage(err, "failed to scan group")
		}
		group.Members = []string{}
		groups = append(groups, &group)
		byID[group.ID] = &group
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate groups")
	}
	if len(groups) == 0 {
		return groups, nil
	}

	membersQuery := `SELECT group_id, user_id FROM memberships WHERE group_id IN (` +
		`SELECT g.group_id FROM directory_groups g WHERE ` + filter.where + `) ORDER BY user_id`
	memberRows, err := querier.QueryContext(ctx, r.dialect.Rebind(membersQuery), filter.args...)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list group members")
	}
	defer func() {
		_ = memberRows.Close()
	}()

	for memberRows.Next() {
		var groupID, userID string
		if err := memberRows.Scan(&groupID, &userID); err != nil {
			return nil, apperrors.Storage(err, "failed to scan group member")
		}
		if group, ok := byID[groupID]; ok {
			group.Members = append(group.Members, userID)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate group members")
	}
	return groups, nil
}
