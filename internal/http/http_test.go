package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	authHTTP "github.com/allisson/lightldap/internal/auth/http"
	authMocks "github.com/allisson/lightldap/internal/auth/usecase/mocks"
	"github.com/allisson/lightldap/internal/config"
	"github.com/allisson/lightldap/internal/directory/domain"
	directoryHTTP "github.com/allisson/lightldap/internal/directory/http"
	directoryMocks "github.com/allisson/lightldap/internal/directory/usecase/mocks"
	"github.com/allisson/lightldap/internal/metrics"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestServer creates a test server without a database.
func createTestServer() *Server {
	return NewServer(nil, "localhost", 8080, discardLogger())
}

type routerEnv struct {
	router    http.Handler
	session   *authMocks.MockSessionUseCase
	passwords *authMocks.MockPasswordUseCase
	backend   *directoryMocks.MockBackendHandler
}

// setupTestRouter mounts every route with mocked use cases. Validate accepts
// "admin-token" and "user-token".
func setupTestRouter(t *testing.T, cfg *config.Config) *routerEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := discardLogger()
	env := &routerEnv{
		session:   &authMocks.MockSessionUseCase{},
		passwords: &authMocks.MockPasswordUseCase{},
		backend:   &directoryMocks.MockBackendHandler{},
	}
	env.session.On("Validate", mock.Anything, "admin-token").Return(&authDomain.Claims{
		UserID: "admin",
		Groups: []string{domain.AdminGroup},
	}, nil).Maybe()
	env.session.On("Validate", mock.Anything, "user-token").Return(&authDomain.Claims{
		UserID: "alice",
		Groups: []string{"eng"},
	}, nil).Maybe()

	server := createTestServer()
	server.SetupRouter(ctx, cfg, Handlers{
		Auth:      authHTTP.NewAuthHandler(env.passwords, env.session, env.backend, logger),
		User:      directoryHTTP.NewUserHandler(env.backend, logger),
		Group:     directoryHTTP.NewGroupHandler(env.backend, logger),
		Attribute: directoryHTTP.NewAttributeHandler(env.backend, logger),
	}, env.session, nil)
	env.router = server.GetHandler()
	return env
}

func (e *routerEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	server.healthHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessHandler_NotReady_NilDB(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

	server.readinessHandler(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "not_ready", response["status"])

	components, ok := response["components"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "error", components["database"])
}

func TestReadinessHandler_Ready(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	dbMock.ExpectPing()

	server := NewServer(db, "localhost", 8080, discardLogger())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

	server.readinessHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ready", response["status"])
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCustomLoggerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test?x=1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(w.Header().Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	env := setupTestRouter(t, &config.Config{})

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/ready", "", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/nonexistent", "", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/metrics", "", "").Code)
}

func TestRouter_APIRequiresBearerToken(t *testing.T) {
	env := setupTestRouter(t, &config.Config{})
	env.session.On("Validate", mock.Anything, "stale-token").Return(nil, authDomain.ErrTokenRevoked)

	for _, token := range []string{"", "stale-token"} {
		w := env.do(http.MethodGet, "/api/v1/users", token, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "token %q", token)
	}
	env.backend.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
}

func TestRouter_AdminRoutesRequireAdminGroup(t *testing.T) {
	env := setupTestRouter(t, &config.Config{})

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/v1/users", `{"id":"bob","email":"bob@example.com"}`},
		{http.MethodDelete, "/api/v1/users/bob", ""},
		{http.MethodPost, "/api/v1/groups", `{"display_name":"ops"}`},
		{http.MethodDelete, "/api/v1/groups/g-eng", ""},
		{http.MethodPut, "/api/v1/groups/g-eng/members/alice", ""},
		{http.MethodDelete, "/api/v1/groups/g-eng/members/alice", ""},
		{http.MethodPost, "/api/v1/attributes", `{"name":"phone"}`},
		{http.MethodDelete, "/api/v1/attributes/phone", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(tt.method, tt.path, "user-token", tt.body)
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

func TestRouter_ListUsersIsRestrictedForRegularUsers(t *testing.T) {
	env := setupTestRouter(t, &config.Config{})
	env.backend.On("ListUsers", mock.Anything, domain.Eq(domain.AttrUserID, "alice")).
		Return([]*domain.User{{ID: "alice", Email: "alice@example.com"}}, nil).Once()

	w := env.do(http.MethodGet, "/api/v1/users", "user-token", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Data, 1)
	assert.Equal(t, "alice", response.Data[0]["id"])
	env.backend.AssertExpectations(t)
}

func TestRouter_AdminAddsGroupMember(t *testing.T) {
	env := setupTestRouter(t, &config.Config{})
	env.backend.On("AddUserToGroup", mock.Anything, "bob", "g-eng").Return(nil).Once()

	w := env.do(http.MethodPut, "/api/v1/groups/g-eng/members/bob", "admin-token", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	env.backend.AssertExpectations(t)
}

func TestRouter_SimpleLogin(t *testing.T) {
	env := setupTestRouter(t, &config.Config{})
	expiresAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	env.passwords.On("VerifyPassword", mock.Anything, "alice", "secret").Return(nil).Once()
	env.session.On("Issue", mock.Anything, "alice").Return(&authDomain.TokenPair{
		AccessToken:           "access",
		AccessTokenExpiresAt:  expiresAt,
		RefreshToken:          "refresh",
		RefreshTokenExpiresAt: expiresAt,
	}, nil).Once()

	w := env.do(http.MethodPost, "/auth/simple/login", "", `{"username":"Alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "access", response["token"])
	assert.Equal(t, "refresh", response["refresh_token"])
}

func TestRouter_LoginIsRateLimitedPerIP(t *testing.T) {
	env := setupTestRouter(t, &config.Config{
		RateLimitLoginEnabled:        true,
		RateLimitLoginRequestsPerSec: 0.001,
		RateLimitLoginBurst:          1,
	})
	env.passwords.On("VerifyPassword", mock.Anything, "alice", "wrong").
		Return(authDomain.ErrAuthenticationFailed)

	body := `{"username":"alice","password":"wrong"}`
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/auth/simple/login", "", body).Code)

	w := env.do(http.MethodPost, "/auth/simple/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRouter_AuthenticatedRoutesAreRateLimitedPerPrincipal(t *testing.T) {
	env := setupTestRouter(t, &config.Config{
		RateLimitEnabled:        true,
		RateLimitRequestsPerSec: 0.001,
		RateLimitBurst:          1,
	})
	env.backend.On("ListAttributes", mock.Anything).Return([]*domain.AttributeSchema{}, nil)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/attributes", "user-token", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodGet, "/api/v1/attributes", "user-token", "").Code)
	// Another principal has its own bucket.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/attributes", "admin-token", "").Code)
}

func TestRouter_CORS(t *testing.T) {
	env := setupTestRouter(t, &config.Config{CORSEnabled: true, CORSAllowOrigins: "https://admin.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/alice", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestServer_ShutdownGracefully(t *testing.T) {
	server := NewServer(nil, "127.0.0.1", 0, discardLogger())
	server.router = gin.New()
	server.router.GET("/health", server.healthHandler)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, <-errChan)
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("localhost", 8081, discardLogger(), provider)
	require.NotNil(t, metricsServer)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}
