package usecase

import (
	"context"
	"time"

	"github.com/allisson/lightldap/internal/directory/domain"
	"github.com/allisson/lightldap/internal/metrics"
)

const metricsDomain = "directory"

// backendHandlerWithMetrics decorates BackendHandler with metrics instrumentation.
type backendHandlerWithMetrics struct {
	next    BackendHandler
	metrics metrics.BusinessMetrics
}

// NewBackendHandlerWithMetrics wraps a BackendHandler with metrics recording.
func NewBackendHandlerWithMetrics(handler BackendHandler, m metrics.BusinessMetrics) BackendHandler {
	return &backendHandlerWithMetrics{
		next:    handler,
		metrics: m,
	}
}

func (b *backendHandlerWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.Status(err)

	b.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	b.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// CreateUser records metrics for user creation.
func (b *backendHandlerWithMetrics) CreateUser(
	ctx context.Context,
	input *domain.CreateUserInput,
) (*domain.User, error) {
	start := time.Now()
	user, err := b.next.CreateUser(ctx, input)
	b.record(ctx, "user_create", start, err)
	return user, err
}

// GetUserDetails records metrics for user retrieval.
func (b *backendHandlerWithMetrics) GetUserDetails(ctx context.Context, userID string) (*domain.User, error) {
	start := time.Now()
	user, err := b.next.GetUserDetails(ctx, userID)
	b.record(ctx, "user_get", start, err)
	return user, err
}

// UpdateUser records metrics for user updates.
func (b *backendHandlerWithMetrics) UpdateUser(
	ctx context.Context,
	userID string,
	input *domain.UpdateUserInput,
) (*domain.User, error) {
	start := time.Now()
	user, err := b.next.UpdateUser(ctx, userID, input)
	b.record(ctx, "user_update", start, err)
	return user, err
}

// DeleteUser records metrics for user deletion.
func (b *backendHandlerWithMetrics) DeleteUser(ctx context.Context, userID string) error {
	start := time.Now()
	err := b.next.DeleteUser(ctx, userID)
	b.record(ctx, "user_delete", start, err)
	return err
}

// ListUsers records metrics for user listing.
func (b *backendHandlerWithMetrics) ListUsers(ctx context.Context, filter *domain.Filter) ([]*domain.User, error) {
	start := time.Now()
	users, err := b.next.ListUsers(ctx, filter)
	b.record(ctx, "user_list", start, err)
	return users, err
}

// CreateGroup records metrics for group creation.
func (b *backendHandlerWithMetrics) CreateGroup(ctx context.Context, displayName string) (*domain.Group, error) {
	start := time.Now()
	group, err := b.next.CreateGroup(ctx, displayName)
	b.record(ctx, "group_create", start, err)
	return group, err
}

// GetGroupDetails records metrics for group retrieval.
func (b *backendHandlerWithMetrics) GetGroupDetails(ctx context.Context, groupID string) (*domain.Group, error) {
	start := time.Now()
	group, err := b.next.GetGroupDetails(ctx, groupID)
	b.record(ctx, "group_get", start, err)
	return group, err
}

// ListGroups records metrics for group listing.
func (b *backendHandlerWithMetrics) ListGroups(ctx context.Context, filter *domain.Filter) ([]*domain.Group, error) {
	start := time.Now()
	groups, err := b.next.ListGroups(ctx, filter)
	b.record(ctx, "group_list", start, err)
	return groups, err
}

// AddUserToGroup records metrics for membership additions.
func (b *backendHandlerWithMetrics) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	start := time.Now()
	err := b.next.AddUserToGroup(ctx, userID, groupID)
	b.record(ctx, "membership_add", start, err)
	return err
}

// RemoveUserFromGroup records metrics for membership removals.
func (b *backendHandlerWithMetrics) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	start := time.Now()
	err := b.next.RemoveUserFromGroup(ctx, userID, groupID)
	b.record(ctx, "membership_remove", start, err)
	return err
}

// DeleteGroup records metrics for group deletion.
func (b *backendHandlerWithMetrics) DeleteGroup(ctx context.Context, groupID string) error {
	start := time.Now()
	err := b.next.DeleteGroup(ctx, groupID)
	b.record(ctx, "group_delete", start, err)
	return err
}

// GetUserGroups records metrics for membership lookups.
func (b *backendHandlerWithMetrics) GetUserGroups(ctx context.Context, userID string) ([]*domain.Group, error) {
	start := time.Now()
	groups, err := b.next.GetUserGroups(ctx, userID)
	b.record(ctx, "user_groups", start, err)
	return groups, err
}

// CreateAttribute records metrics for attribute declarations.
func (b *backendHandlerWithMetrics) CreateAttribute(
	ctx context.Context,
	name string,
	isEditable bool,
) (*domain.AttributeSchema, error) {
	start := time.Now()
	attribute, err := b.next.CreateAttribute(ctx, name, isEditable)
	b.record(ctx, "attribute_create", start, err)
	return attribute, err
}

// ListAttributes records metrics for attribute listing.
func (b *backendHandlerWithMetrics) ListAttributes(ctx context.Context) ([]*domain.AttributeSchema, error) {
	start := time.Now()
	attributes, err := b.next.ListAttributes(ctx)
	b.record(ctx, "attribute_list", start, err)
	return attributes, err
}

// DeleteAttribute records metrics for attribute removal.
func (b *backendHandlerWithMetrics) DeleteAttribute(ctx context.Context, name string) error {
	start := time.Now()
	err := b.next.DeleteAttribute(ctx, name)
	b.record(ctx, "attribute_delete", start, err)
	return err
}
