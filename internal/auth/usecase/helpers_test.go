package usecase_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	authRepository "github.com/allisson/lightldap/internal/auth/repository"
	"github.com/allisson/lightldap/internal/database"
	directoryDomain "github.com/allisson/lightldap/internal/directory/domain"
	directoryRepository "github.com/allisson/lightldap/internal/directory/repository"
	directoryUseCase "github.com/allisson/lightldap/internal/directory/usecase"
	"github.com/allisson/lightldap/internal/opaque"
	"github.com/allisson/lightldap/internal/testutil"
)

var testKSF = opaque.KSFParams{Time: 1, Memory: 64, Threads: 1}

type testEnv struct {
	db        *sql.DB
	dialect   database.Dialect
	txManager database.TxManager
	backend   directoryUseCase.BackendHandler
	server    *opaque.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, dialect := testutil.SetupSQLiteDB(t)
	t.Cleanup(func() { testutil.TeardownDB(t, db) })

	txManager := database.NewTxManager(db)
	backend := directoryUseCase.NewBackendHandler(
		txManager,
		directoryRepository.NewSQLUserRepository(db, dialect),
		directoryRepository.NewSQLGroupRepository(db, dialect),
		directoryRepository.NewSQLAttributeSchemaRepository(db, dialect),
	)

	key, err := opaque.GenerateServerKey()
	require.NoError(t, err)

	return &testEnv{
		db:        db,
		dialect:   dialect,
		txManager: txManager,
		backend:   backend,
		server:    opaque.NewServer(key, testKSF),
	}
}

func (e *testEnv) passwordRepo() *authRepository.SQLPasswordRepository {
	return authRepository.NewSQLPasswordRepository(e.db, e.dialect)
}

func (e *testEnv) tokenRepo() *authRepository.SQLTokenRepository {
	return authRepository.NewSQLTokenRepository(e.db, e.dialect)
}

func (e *testEnv) createUser(t *testing.T, userID string) {
	t.Helper()
	_, err := e.backend.CreateUser(context.Background(), &directoryDomain.CreateUserInput{
		ID:    userID,
		Email: userID + "@example.com",
	})
	require.NoError(t, err)
}

func (e *testEnv) createGroup(t *testing.T, name string, members ...string) *directoryDomain.Group {
	t.Helper()
	ctx := context.Background()
	group, err := e.backend.CreateGroup(ctx, name)
	require.NoError(t, err)
	for _, member := range members {
		require.NoError(t, e.backend.AddUserToGroup(ctx, member, group.ID))
	}
	return group
}
