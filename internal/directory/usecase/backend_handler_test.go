package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lightldap/internal/database"
	"github.com/allisson/lightldap/internal/directory/domain"
	"github.com/allisson/lightldap/internal/directory/repository"
	"github.com/allisson/lightldap/internal/directory/usecase"
	apperrors "github.com/allisson/lightldap/internal/errors"
	"github.com/allisson/lightldap/internal/testutil"
)

func newBackendHandler(t *testing.T) usecase.BackendHandler {
	t.Helper()
	db, dialect := testutil.SetupSQLiteDB(t)
	t.Cleanup(func() { testutil.TeardownDB(t, db) })

	return usecase.NewBackendHandler(
		database.NewTxManager(db),
		repository.NewSQLUserRepository(db, dialect),
		repository.NewSQLGroupRepository(db, dialect),
		repository.NewSQLAttributeSchemaRepository(db, dialect),
	)
}

func createUser(t *testing.T, backend usecase.BackendHandler, id string) *domain.User {
	t.Helper()
	user, err := backend.CreateUser(context.Background(), &domain.CreateUserInput{
		ID:          id,
		Email:       id + "@example.com",
		DisplayName: id,
	})
	require.NoError(t, err)
	return user
}

func userIDs(users []*domain.User) []string {
	ids := []string{}
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestBackendHandler_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_NormalizesID", func(t *testing.T) {
		backend := newBackendHandler(t)

		user, err := backend.CreateUser(ctx, &domain.CreateUserInput{
			ID:          "Alice",
			Email:       "alice@example.com",
			DisplayName: "Alice",
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.ID)
		assert.NotEqual(t, [16]byte{}, [16]byte(user.UUID))

		got, err := backend.GetUserDetails(ctx, "ALICE")
		require.NoError(t, err)
		assert.Equal(t, user.UUID, got.UUID)
	})

	t.Run("Error_AlreadyExists", func(t *testing.T) {
		backend := newBackendHandler(t)
		createUser(t, backend, "alice")

		_, err := backend.CreateUser(ctx, &domain.CreateUserInput{ID: "alice", Email: "other@example.com"})
		assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Error_InvalidID", func(t *testing.T) {
		backend := newBackendHandler(t)

		_, err := backend.CreateUser(ctx, &domain.CreateUserInput{ID: "bad id", Email: "a@example.com"})
		assert.ErrorIs(t, err, domain.ErrInvalidUserID)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_InvalidEmail", func(t *testing.T) {
		backend := newBackendHandler(t)

		_, err := backend.CreateUser(ctx, &domain.CreateUserInput{ID: "alice", Email: "nope"})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})

	t.Run("Error_UndeclaredAttribute", func(t *testing.T) {
		backend := newBackendHandler(t)

		_, err := backend.CreateUser(ctx, &domain.CreateUserInput{
			ID:         "alice",
			Email:      "alice@example.com",
			Attributes: map[string]string{"phone": "1"},
		})
		assert.ErrorIs(t, err, domain.ErrUnknownAttribute)

		_, err = backend.GetUserDetails(ctx, "alice")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestBackendHandler_UpdateUser(t *testing.T) {
	ctx := context.Background()
	backend := newBackendHandler(t)

	_, err := backend.CreateAttribute(ctx, "phone", true)
	require.NoError(t, err)
	_, err = backend.CreateAttribute(ctx, "badge", false)
	require.NoError(t, err)

	_, err = backend.CreateUser(ctx, &domain.CreateUserInput{
		ID:         "alice",
		Email:      "alice@example.com",
		FirstName:  "Alice",
		Attributes: map[string]string{"phone": "1", "badge": "42"},
	})
	require.NoError(t, err)

	name := "Alice Liddell"
	user, err := backend.UpdateUser(ctx, "alice", &domain.UpdateUserInput{
		DisplayName: &name,
		Attributes: map[string]domain.AttributePatch{
			"phone": domain.SetAttribute("2"),
			"badge": domain.UnsetAttribute(),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", user.DisplayName)
	assert.Equal(t, "Alice", user.FirstName)
	assert.Equal(t, map[string]string{"phone": "2"}, user.Attributes)

	unchanged, err := backend.UpdateUser(ctx, "alice", &domain.UpdateUserInput{})
	require.NoError(t, err)
	assert.Equal(t, user.DisplayName, unchanged.DisplayName)

	_, err = backend.UpdateUser(ctx, "ghost", &domain.UpdateUserInput{DisplayName: &name})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = backend.UpdateUser(ctx, "alice", &domain.UpdateUserInput{
		Attributes: map[string]domain.AttributePatch{"shoe_size": domain.SetAttribute("42")},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownAttribute)

	bad := "not-an-email"
	_, err = backend.UpdateUser(ctx, "alice", &domain.UpdateUserInput{Email: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestBackendHandler_AliceEngScenario(t *testing.T) {
	ctx := context.Background()
	backend := newBackendHandler(t)

	createUser(t, backend, "alice")
	createUser(t, backend, "bob")
	eng, err := backend.CreateGroup(ctx, "eng")
	require.NoError(t, err)

	require.NoError(t, backend.AddUserToGroup(ctx, "alice", eng.ID))

	users, err := backend.ListUsers(ctx, domain.Eq(domain.AttrMemberOf, "eng"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, userIDs(users))

	require.NoError(t, backend.DeleteUser(ctx, "alice"))

	group, err := backend.GetGroupDetails(ctx, eng.ID)
	require.NoError(t, err)
	assert.Empty(t, group.Members)

	users, err = backend.ListUsers(ctx, domain.Eq(domain.AttrMemberOf, "eng"))
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestBackendHandler_FilterAlgebra(t *testing.T) {
	ctx := context.Background()
	backend := newBackendHandler(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		createUser(t, backend, id)
	}

	all, err := backend.ListUsers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, userIDs(all))

	andEmpty, err := backend.ListUsers(ctx, domain.And())
	require.NoError(t, err)
	assert.Equal(t, userIDs(all), userIDs(andEmpty))

	orEmpty, err := backend.ListUsers(ctx, domain.Or())
	require.NoError(t, err)
	assert.Empty(t, orEmpty)

	filters := []*domain.Filter{
		domain.Eq(domain.AttrUserID, "bob"),
		domain.Or(domain.Eq(domain.AttrUserID, "alice"), domain.Eq(domain.AttrEmail, "carol@example.com")),
		domain.Substring(domain.AttrDisplayName, "", []string{"o"}, ""),
	}
	for _, f := range filters {
		direct, err := backend.ListUsers(ctx, f)
		require.NoError(t, err)
		doubleNot, err := backend.ListUsers(ctx, domain.Not(domain.Not(f)))
		require.NoError(t, err)
		assert.Equal(t, userIDs(direct), userIDs(doubleNot), f.String())
	}

	_, err = backend.ListUsers(ctx, domain.Eq("shoe_size", "42"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestBackendHandler_Groups(t *testing.T) {
	ctx := context.Background()
	backend := newBackendHandler(t)
	createUser(t, backend, "alice")

	eng, err := backend.CreateGroup(ctx, "eng")
	require.NoError(t, err)

	_, err = backend.CreateGroup(ctx, "eng")
	assert.ErrorIs(t, err, domain.ErrGroupAlreadyExists)

	_, err = backend.CreateGroup(ctx, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidGroupName)

	_, err = backend.CreateGroup(ctx, "a,b")
	assert.ErrorIs(t, err, domain.ErrInvalidGroupName)

	t.Run("AddIsIdempotent", func(t *testing.T) {
		require.NoError(t, backend.AddUserToGroup(ctx, "alice", eng.ID))
		require.NoError(t, backend.AddUserToGroup(ctx, "alice", eng.ID))

		group, err := backend.GetGroupDetails(ctx, eng.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, group.Members)

		groups, err := backend.GetUserGroups(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "eng", groups[0].DisplayName)
	})

	t.Run("AddMissingEndpoints", func(t *testing.T) {
		err := backend.AddUserToGroup(ctx, "ghost", eng.ID)
		assert.ErrorIs(t, err, domain.ErrUserNotFound)

		err = backend.AddUserToGroup(ctx, "alice", "00000000-0000-7000-8000-000000000000")
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)
	})

	t.Run("RemoveIsNoOpWhenAbsent", func(t *testing.T) {
		require.NoError(t, backend.RemoveUserFromGroup(ctx, "alice", eng.ID))
		require.NoError(t, backend.RemoveUserFromGroup(ctx, "alice", eng.ID))

		groups, err := backend.GetUserGroups(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.AddUserToGroup(ctx, "alice", eng.ID))
		require.NoError(t, backend.DeleteGroup(ctx, eng.ID))

		_, err := backend.GetGroupDetails(ctx, eng.ID)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)

		err = backend.DeleteGroup(ctx, eng.ID)
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)

		_, err = backend.GetUserDetails(ctx, "alice")
		assert.NoError(t, err)
	})

	_, err = backend.GetUserGroups(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestBackendHandler_Attributes(t *testing.T) {
	ctx := context.Background()
	backend := newBackendHandler(t)

	attribute, err := backend.CreateAttribute(ctx, " Phone ", true)
	require.NoError(t, err)
	assert.Equal(t, "phone", attribute.Name)

	_, err = backend.CreateAttribute(ctx, "phone", false)
	assert.ErrorIs(t, err, domain.ErrAttributeAlreadyExists)

	_, err = backend.CreateAttribute(ctx, "email", false)
	assert.ErrorIs(t, err, domain.ErrInvalidAttributeName)

	_, err = backend.CreateAttribute(ctx, "9lives", false)
	assert.ErrorIs(t, err, domain.ErrInvalidAttributeName)

	attributes, err := backend.ListAttributes(ctx)
	require.NoError(t, err)
	require.Len(t, attributes, 1)
	assert.True(t, attributes[0].IsEditable)

	require.NoError(t, backend.DeleteAttribute(ctx, "phone"))
	err = backend.DeleteAttribute(ctx, "phone")
	assert.ErrorIs(t, err, domain.ErrAttributeNotFound)
}
