package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/lightldap/internal/database"
	"github.com/allisson/lightldap/internal/directory/domain"
	apperrors "github.com/allisson/lightldap/internal/errors"
)

// SQLAttributeSchemaRepository persists the custom user attribute declarations.
type SQLAttributeSchemaRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLAttributeSchemaRepository creates a new SQLAttributeSchemaRepository.
func NewSQLAttributeSchemaRepository(db *sql.DB, dialect database.Dialect) *SQLAttributeSchemaRepository {
	return &SQLAttributeSchemaRepository{
		db:      db,
		dialect: dialect,
	}
}

// Create declares an attribute.
func (r *SQLAttributeSchemaRepository) Create(ctx context.Context, attribute *domain.AttributeSchema) error {
	querier := database.GetTx(ctx, r.db)

	_, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`INSERT INTO attribute_schema (name, is_editable, created_at) VALUES (?, ?, ?)`),
		attribute.Name,
		attribute.IsEditable,
		attribute.CreatedAt,
	)
	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			return domain.ErrAttributeAlreadyExists
		}
		return apperrors.Storage(err, "failed to create attribute")
	}
	return nil
}

// List returns every declared attribute ordered by name.
func (r *SQLAttributeSchemaRepository) List(ctx context.Context) ([]*domain.AttributeSchema, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx,
		`SELECT name, is_editable, created_at FROM attribute_schema ORDER BY name`)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to list attributes")
	}
	defer func() {
		_ = rows.Close()
	}()

	attributes := []*domain.AttributeSchema{}
	for rows.Next() {
		var attribute domain.AttributeSchema
		if err := rows.Scan(&attribute.Name, &attribute.IsEditable, &attribute.CreatedAt); err != nil {
			return nil, apperrors.Storage(err, "failed to scan attribute")
		}
		attributes = append(attributes, &attribute)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(err, "failed to iterate attributes")
	}
	return attributes, nil
}

// Delete removes a declaration and every value of the attribute. Must run inside a transaction.
func (r *SQLAttributeSchemaRepository) Delete(ctx context.Context, name string) error {
	querier := database.GetTx(ctx, r.db)

	if _, err := querier.ExecContext(ctx,
		r.dialect.Rebind(`DELETE FROM user_attributes WHERE name = ?`), name); err != nil {
		return apperrors.Storage(err, "failed to delete attribute values")
	}

	result, err := querier.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM attribute_schema WHERE name = ?`), name)
	if err != nil {
		return apperrors.Storage(err, "failed to delete attribute")
	}
	return requireAffected(result, domain.ErrAttributeNotFound)
}
