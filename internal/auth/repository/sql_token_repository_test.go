package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
	directoryRepository "github.com/allisson/lightldap/internal/directory/repository"
	"github.com/allisson/lightldap/internal/testutil"
)

func createTestUser(t *testing.T, engine testutil.Engine, userID string) {
	t.Helper()
	now := time.Now().UTC()
	repo := directoryRepository.NewSQLUserRepository(engine.DB, engine.Dialect)
	require.NoError(t, repo.Create(context.Background(), &directoryDomain.User{
		ID:        userID,
		Email:     userID + "@example.com",
		UUID:      uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func newTestToken(userID, hash string, expiresAt time.Time) *authDomain.SessionToken {
	return &authDomain.SessionToken{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: hash,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQLTokenRepository_CreateAndGet(t *testing.T) {
	for _, engine := range testutil.Engines(t) {
		t.Run(engine.Name, func(t *testing.T) {
			ctx := context.Background()
			createTestUser(t, engine, "alice")
			repo := NewSQLTokenRepository(engine.DB, engine.Dialect)

			token := newTestToken("alice", "hash-1", time.Now().UTC().Add(time.Hour))
			require.NoError(t, repo.Create(ctx, token))

			got, err := repo.GetByTokenHash(ctx, "hash-1")
			require.NoError(t, err)
			assert.Equal(t, token.ID, got.ID)
			assert.Equal(t, "alice", got.UserID)
			assert.WithinDuration(t, token.ExpiresAt, got.ExpiresAt, time.Second)
			assert.Nil(t, got.RevokedAt)

			_, err = repo.GetByTokenHash(ctx, "missing")
			assert.ErrorIs(t, err, authDomain.ErrTokenNotFound)
		})
	}
}

func TestSQLTokenRepository_RevokeAndDelete(t *testing.T) {
	for _, engine := range testutil.Engines(t) {
		t.Run(engine.Name, func(t *testing.T) {
			ctx := context.Background()
			createTestUser(t, engine, "alice")
			repo := NewSQLTokenRepository(engine.DB, engine.Dialect)

			token := newTestToken("alice", "hash-2", time.Now().UTC().Add(time.Hour))
			require.NoError(t, repo.Create(ctx, token))

			revokedAt := time.Now().UTC()
			require.NoError(t, repo.Revoke(ctx, token.ID, revokedAt))

			got, err := repo.GetByTokenHash(ctx, "hash-2")
			require.NoError(t, err)
			require.NotNil(t, got.RevokedAt)
			assert.WithinDuration(t, revokedAt, *got.RevokedAt, time.Second)

			require.NoError(t, repo.Delete(ctx, token.ID))
			assert.ErrorIs(t, repo.Delete(ctx, token.ID), authDomain.ErrTokenNotFound)
			assert.ErrorIs(t, repo.Revoke(ctx, token.ID, revokedAt), authDomain.ErrTokenNotFound)
		})
	}
}

func TestSQLTokenRepository_DeleteExpired(t *testing.T) {
	for _, engine := range testutil.Engines(t) {
		t.Run(engine.Name, func(t *testing.T) {
			ctx := context.Background()
			createTestUser(t, engine, "alice")
			repo := NewSQLTokenRepository(engine.DB, engine.Dialect)
			now := time.Now().UTC()

			require.NoError(t, repo.Create(ctx, newTestToken("alice", "expired-1", now.Add(-2*time.Hour))))
			require.NoError(t, repo.Create(ctx, newTestToken("alice", "expired-2", now.Add(-time.Minute))))
			require.NoError(t, repo.Create(ctx, newTestToken("alice", "valid", now.Add(time.Hour))))

			count, err := repo.DeleteExpired(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			_, err = repo.GetByTokenHash(ctx, "valid")
			assert.NoError(t, err)
			_, err = repo.GetByTokenHash(ctx, "expired-1")
			assert.ErrorIs(t, err, authDomain.ErrTokenNotFound)

			count, err = repo.DeleteExpired(ctx, now)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestSQLTokenRepository_RemovedWithUser(t *testing.T) {
	for _, engine := range testutil.Engines(t) {
		t.Run(engine.Name, func(t *testing.T) {
			ctx := context.Background()
			createTestUser(t, engine, "alice")
			repo := NewSQLTokenRepository(engine.DB, engine.Dialect)
			require.NoError(t, repo.Create(ctx, newTestToken("alice", "hash-3", time.Now().UTC().Add(time.Hour))))

			users := directoryRepository.NewSQLUserRepository(engine.DB, engine.Dialect)
			require.NoError(t, users.Delete(ctx, "alice"))

			_, err := repo.GetByTokenHash(ctx, "hash-3")
			assert.ErrorIs(t, err, authDomain.ErrTokenNotFound)
		})
	}
}
