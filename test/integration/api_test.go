// Package integration provides end-to-end tests that drive the HTTP API and the LDAP
// listener of a fully wired container.
package integration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lightldap/internal/app"
	authDTO "github.com/allisson/lightldap/internal/auth/http/dto"
	"github.com/allisson/lightldap/internal/config"
	"github.com/allisson/lightldap/internal/database"
	directoryDTO "github.com/allisson/lightldap/internal/directory/http/dto"
	directoryUseCase "github.com/allisson/lightldap/internal/directory/usecase"
	"github.com/allisson/lightldap/internal/ldap"
	"github.com/allisson/lightldap/internal/opaque"
	"github.com/allisson/lightldap/internal/testutil"
)

const (
	testBaseDN        = "dc=example,dc=com"
	testAdminPassword = "admin-password"
)

// testKSF must match the OPAQUE_KSF_* values of the test configuration.
var testKSF = opaque.KSFParams{Time: 1, Memory: 1024, Threads: 1}

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container  *app.Container
	server     *httptest.Server
	ldapURL    string
	ldapDone   chan error
	adminToken string
	dbDriver   string
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
	token string,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// login authenticates with the simple login endpoint.
func (ctx *integrationTestContext) login(t *testing.T, username, password string) authDTO.TokenResponse {
	t.Helper()

	resp, body := ctx.makeRequest(t, http.MethodPost, "/auth/simple/login", authDTO.SimpleLoginRequest{
		Username: username,
		Password: password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var token authDTO.TokenResponse
	require.NoError(t, json.Unmarshal(body, &token))
	require.NotEmpty(t, token.Token)
	require.NotEmpty(t, token.RefreshToken)
	return token
}

// registerPassword runs both OPAQUE registration steps over HTTP.
func (ctx *integrationTestContext) registerPassword(t *testing.T, token, username, password string) {
	t.Helper()

	client := opaque.NewClient(testKSF)
	request, err := client.RegistrationStart([]byte(password))
	require.NoError(t, err)
	requestBytes, err := request.MarshalBinary()
	require.NoError(t, err)

	resp, body := ctx.makeRequest(t, http.MethodPost, "/auth/opaque/register/start", authDTO.RegisterStartRequest{
		Username:                 username,
		RegistrationStartRequest: base64.StdEncoding.EncodeToString(requestBytes),
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var startResp authDTO.RegisterStartResponse
	require.NoError(t, json.Unmarshal(body, &startResp))

	var response opaque.RegistrationResponse
	require.NoError(t, response.UnmarshalBinary(authDTO.DecodeBase64(startResp.RegistrationResponse)))
	record, err := client.RegistrationFinalize(&response, username)
	require.NoError(t, err)
	recordBytes, err := record.MarshalBinary()
	require.NoError(t, err)

	resp, body = ctx.makeRequest(t, http.MethodPost, "/auth/opaque/register/finish", authDTO.RegisterFinishRequest{
		Username:           username,
		RegistrationUpload: base64.StdEncoding.EncodeToString(recordBytes),
	}, token)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))
}

// dialLDAP opens an LDAP connection that is closed with the test.
func (ctx *integrationTestContext) dialLDAP(t *testing.T) *goldap.Conn {
	t.Helper()
	conn, err := goldap.DialURL(ctx.ldapURL)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// databaseForDriver returns a migrated, empty database of the given driver.
func databaseForDriver(t *testing.T, dbDriver string) string {
	t.Helper()

	switch dbDriver {
	case database.DriverPostgres:
		db, _ := testutil.SetupPostgresDB(t)
		testutil.TeardownDB(t, db)
		return testutil.GetPostgresTestDSN()
	case database.DriverMySQL:
		db, _ := testutil.SetupMySQLDB(t)
		testutil.TeardownDB(t, db)
		return testutil.GetMySQLTestDSN()
	default:
		dsn := testutil.SQLiteTestDSN(t)
		dialect, err := database.NewDialect(database.DriverSQLite)
		require.NoError(t, err)
		m, err := database.NewMigrate(dialect, dsn)
		require.NoError(t, err)
		require.NoError(t, database.MigrateUp(m))
		srcErr, dbErr := m.Close()
		require.NoError(t, srcErr)
		require.NoError(t, dbErr)
		return dsn
	}
}

// setupIntegrationTest initializes all components for integration testing.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		LogLevel:                  "error",
		ServerHost:                "127.0.0.1",
		LDAPHost:                  "127.0.0.1",
		LDAPBaseDN:                testBaseDN,
		DBDriver:                  dbDriver,
		DBConnectionString:        databaseForDriver(t, dbDriver),
		DBMaxOpenConnections:      5,
		DBMaxIdleConnections:      5,
		DBConnMaxLifetime:         time.Hour,
		JWTSecret:                 "integration-secret",
		JWTAccessTokenExpiration:  time.Hour,
		JWTRefreshTokenExpiration: 24 * time.Hour,
		ServerKeyFile:             filepath.Join(t.TempDir(), "server_key"),
		OpaqueKSFTime:             int(testKSF.Time),
		OpaqueKSFMemory:           int(testKSF.Memory),
		OpaqueKSFThreads:          int(testKSF.Threads),
		TokenCleanupSchedule:      "0 0 * * * *",
		AdminUserID:               "admin",
		AdminEmail:                "admin@example.com",
		AdminPassword:             testAdminPassword,
	}

	container := app.NewContainer(cfg)

	bootstrap, err := container.BootstrapUseCase()
	require.NoError(t, err, "failed to get bootstrap use case")
	err = bootstrap.Run(context.Background(), &directoryUseCase.BootstrapInput{
		AdminUserID:   cfg.AdminUserID,
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	require.NoError(t, err, "failed to bootstrap admin")

	httpSrv, err := container.HTTPServer()
	require.NoError(t, err, "failed to get HTTP server")
	handler := httpSrv.GetHandler()
	require.NotNil(t, handler, "handler should not be nil after SetupRouter")
	testServer := httptest.NewServer(handler)

	ldapSrv, err := container.LDAPServer()
	require.NoError(t, err, "failed to get LDAP server")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ldapDone := make(chan error, 1)
	go func() {
		ldapDone <- ldapSrv.Serve(context.Background(), ln)
	}()

	ctx := &integrationTestContext{
		container: container,
		server:    testServer,
		ldapURL:   "ldap://" + ln.Addr().String(),
		ldapDone:  ldapDone,
		dbDriver:  dbDriver,
	}
	ctx.adminToken = ctx.login(t, cfg.AdminUserID, testAdminPassword).Token

	t.Logf("Integration test setup complete for %s (ldap=%s)", dbDriver, ctx.ldapURL)
	return ctx
}

// teardownIntegrationTest cleans up all resources.
func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()

	if ctx.server != nil {
		ctx.server.Close()
	}

	if ctx.container != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ctx.container.Shutdown(shutdownCtx); err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
		assert.ErrorIs(t, <-ctx.ldapDone, ldap.ErrServerClosed)
	}
}

var testDrivers = []string{database.DriverSQLite, database.DriverPostgres, database.DriverMySQL}

func TestIntegration_Health_BasicChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, dbDriver := range testDrivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)

			resp, body := ctx.makeRequest(t, http.MethodGet, "/health", nil, "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), "healthy")

			resp, _ = ctx.makeRequest(t, http.MethodGet, "/ready", nil, "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			resp, _ = ctx.makeRequest(t, http.MethodGet, "/api/v1/users", nil, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestIntegration_Directory_CompleteFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, dbDriver := range testDrivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)

			var groupID string

			t.Run("01_CreateUser", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/api/v1/users", directoryDTO.CreateUserRequest{
					ID:          "Alice",
					Email:       "alice@example.com",
					DisplayName: "Alice Liddell",
					FirstName:   "Alice",
					LastName:    "Liddell",
				}, ctx.adminToken)
				require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

				var user directoryDTO.UserResponse
				require.NoError(t, json.Unmarshal(body, &user))
				assert.Equal(t, "alice", user.ID)
				assert.NotEmpty(t, user.UUID)
			})

			t.Run("02_DuplicateUser", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodPost, "/api/v1/users", directoryDTO.CreateUserRequest{
					ID:    "alice",
					Email: "other@example.com",
				}, ctx.adminToken)
				assert.Equal(t, http.StatusConflict, resp.StatusCode)
			})

			t.Run("03_CreateGroup", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/api/v1/groups", directoryDTO.CreateGroupRequest{
					DisplayName: "engineering",
				}, ctx.adminToken)
				require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

				var group directoryDTO.GroupResponse
				require.NoError(t, json.Unmarshal(body, &group))
				assert.Equal(t, "engineering", group.DisplayName)
				groupID = group.ID
			})

			t.Run("04_AddMember", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPut,
					"/api/v1/groups/"+groupID+"/members/alice", nil, ctx.adminToken)
				require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

				resp, body = ctx.makeRequest(t, http.MethodGet, "/api/v1/users/alice", nil, ctx.adminToken)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				var user directoryDTO.UserResponse
				require.NoError(t, json.Unmarshal(body, &user))
				assert.Contains(t, user.Groups, groupID)
			})

			t.Run("05_ListUsers", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/api/v1/users", nil, ctx.adminToken)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var list directoryDTO.ListUsersResponse
				require.NoError(t, json.Unmarshal(body, &list))
				ids := make([]string, 0, len(list.Data))
				for _, user := range list.Data {
					ids = append(ids, user.ID)
				}
				assert.ElementsMatch(t, []string{"admin", "alice"}, ids)
			})

			t.Run("06_RegisterPassword", func(t *testing.T) {
				ctx.registerPassword(t, ctx.adminToken, "alice", "alice-password")
				ctx.login(t, "alice", "alice-password")

				resp, _ := ctx.makeRequest(t, http.MethodPost, "/auth/simple/login", authDTO.SimpleLoginRequest{
					Username: "alice",
					Password: "wrong-password",
				}, "")
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			})

			t.Run("07_RegularUserCannotCreate", func(t *testing.T) {
				token := ctx.login(t, "alice", "alice-password").Token
				resp, _ := ctx.makeRequest(t, http.MethodPost, "/api/v1/groups", directoryDTO.CreateGroupRequest{
					DisplayName: "forbidden",
				}, token)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			})

			t.Run("08_LDAPBindAndSearch", func(t *testing.T) {
				conn := ctx.dialLDAP(t)
				require.NoError(t, conn.Bind("uid=admin,ou=people,"+testBaseDN, testAdminPassword))

				result, err := conn.Search(goldap.NewSearchRequest(
					"ou=people,"+testBaseDN,
					goldap.ScopeWholeSubtree, goldap.NeverDerefAliases, 0, 0, false,
					"(&(objectClass=person)(uid=alice))",
					[]string{"uid", "mail", "cn", "memberOf"},
					nil,
				))
				require.NoError(t, err)
				require.Len(t, result.Entries, 1)

				entry := result.Entries[0]
				assert.Equal(t, "uid=alice,ou=people,"+testBaseDN, entry.DN)
				assert.Equal(t, "alice@example.com", entry.GetAttributeValue("mail"))
				assert.Equal(t, "Alice Liddell", entry.GetAttributeValue("cn"))
				assert.Equal(t, []string{"cn=engineering,ou=groups," + testBaseDN}, entry.GetAttributeValues("memberOf"))

				result, err = conn.Search(goldap.NewSearchRequest(
					"ou=groups,"+testBaseDN,
					goldap.ScopeWholeSubtree, goldap.NeverDerefAliases, 0, 0, false,
					"(member=uid=alice,ou=people,"+testBaseDN+")",
					[]string{"cn"},
					nil,
				))
				require.NoError(t, err)
				require.Len(t, result.Entries, 1)
				assert.Equal(t, "engineering", result.Entries[0].GetAttributeValue("cn"))
			})

			t.Run("09_LDAPUserBind", func(t *testing.T) {
				conn := ctx.dialLDAP(t)
				err := conn.Bind("uid=alice,ou=people,"+testBaseDN, "wrong-password")
				assert.True(t, goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials))

				require.NoError(t, conn.Bind("uid=alice,ou=people,"+testBaseDN, "alice-password"))
				whoami, err := conn.WhoAmI(nil)
				require.NoError(t, err)
				assert.Equal(t, "dn:uid=alice,ou=people,"+testBaseDN, whoami.AuthzID)
			})

			t.Run("10_LDAPPasswordModify", func(t *testing.T) {
				conn := ctx.dialLDAP(t)
				require.NoError(t, conn.Bind("uid=alice,ou=people,"+testBaseDN, "alice-password"))
				_, err := conn.PasswordModify(goldap.NewPasswordModifyRequest("", "alice-password", "new-password"))
				require.NoError(t, err)

				ctx.login(t, "alice", "new-password")
			})

			t.Run("11_DeleteUser", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodDelete, "/api/v1/users/alice", nil, ctx.adminToken)
				assert.Equal(t, http.StatusNoContent, resp.StatusCode)

				resp, _ = ctx.makeRequest(t, http.MethodGet, "/api/v1/users/alice", nil, ctx.adminToken)
				assert.Equal(t, http.StatusNotFound, resp.StatusCode)

				conn := ctx.dialLDAP(t)
				err := conn.Bind("uid=alice,ou=people,"+testBaseDN, "new-password")
				assert.True(t, goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials))
			})
		})
	}
}

func TestIntegration_Auth_CompleteFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, dbDriver := range testDrivers {
		t.Run(dbDriver, func(t *testing.T) {
			ctx := setupIntegrationTest(t, dbDriver)
			defer teardownIntegrationTest(t, ctx)

			t.Run("01_OpaqueLogin", func(t *testing.T) {
				client := opaque.NewClient(testKSF)
				ke1, err := client.LoginStart([]byte(testAdminPassword))
				require.NoError(t, err)
				ke1Bytes, err := ke1.MarshalBinary()
				require.NoError(t, err)

				resp, body := ctx.makeRequest(t, http.MethodPost, "/auth/opaque/login/start", authDTO.LoginStartRequest{
					Username:          "admin",
					LoginStartRequest: base64.StdEncoding.EncodeToString(ke1Bytes),
				}, "")
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var startResp authDTO.LoginStartResponse
				require.NoError(t, json.Unmarshal(body, &startResp))

				var ke2 opaque.KE2
				require.NoError(t, ke2.UnmarshalBinary(authDTO.DecodeBase64(startResp.CredentialResponse)))
				ke3, _, err := client.LoginFinish(&ke2, "admin")
				require.NoError(t, err)
				ke3Bytes, err := ke3.MarshalBinary()
				require.NoError(t, err)

				resp, body = ctx.makeRequest(t, http.MethodPost, "/auth/opaque/login/finish", authDTO.LoginFinishRequest{
					Username:               "admin",
					ServerData:             startResp.ServerData,
					CredentialFinalization: base64.StdEncoding.EncodeToString(ke3Bytes),
				}, "")
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var token authDTO.TokenResponse
				require.NoError(t, json.Unmarshal(body, &token))
				assert.NotEmpty(t, token.Token)
			})

			t.Run("02_OpaqueLoginWrongPassword", func(t *testing.T) {
				client := opaque.NewClient(testKSF)
				ke1, err := client.LoginStart([]byte("wrong-password"))
				require.NoError(t, err)
				ke1Bytes, err := ke1.MarshalBinary()
				require.NoError(t, err)

				resp, body := ctx.makeRequest(t, http.MethodPost, "/auth/opaque/login/start", authDTO.LoginStartRequest{
					Username:          "admin",
					LoginStartRequest: base64.StdEncoding.EncodeToString(ke1Bytes),
				}, "")
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var startResp authDTO.LoginStartResponse
				require.NoError(t, json.Unmarshal(body, &startResp))

				var ke2 opaque.KE2
				require.NoError(t, ke2.UnmarshalBinary(authDTO.DecodeBase64(startResp.CredentialResponse)))
				_, _, err = client.LoginFinish(&ke2, "admin")
				assert.Error(t, err)
			})

			t.Run("03_RefreshRotation", func(t *testing.T) {
				token := ctx.login(t, "admin", testAdminPassword)

				resp, body := ctx.makeRequest(t, http.MethodPost, "/auth/refresh", authDTO.RefreshRequest{
					RefreshToken: token.RefreshToken,
				}, "")
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var rotated authDTO.TokenResponse
				require.NoError(t, json.Unmarshal(body, &rotated))
				assert.NotEqual(t, token.RefreshToken, rotated.RefreshToken)

				resp, _ = ctx.makeRequest(t, http.MethodPost, "/auth/refresh", authDTO.RefreshRequest{
					RefreshToken: token.RefreshToken,
				}, "")
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

				resp, _ = ctx.makeRequest(t, http.MethodGet, "/api/v1/users/admin", nil, rotated.Token)
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			})

			t.Run("04_Logout", func(t *testing.T) {
				token := ctx.login(t, "admin", testAdminPassword)

				resp, body := ctx.makeRequest(t, http.MethodPost, "/auth/logout", authDTO.LogoutRequest{
					RefreshToken: token.RefreshToken,
				}, token.Token)
				require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

				resp, _ = ctx.makeRequest(t, http.MethodPost, "/auth/refresh", authDTO.RefreshRequest{
					RefreshToken: token.RefreshToken,
				}, "")
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			})
		})
	}
}
