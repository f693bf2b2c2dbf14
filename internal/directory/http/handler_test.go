package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	authDomain "github.com/allisson/lightldap/internal/auth/domain"
	authHTTP "github.com/allisson/lightldap/internal/auth/http"
	"github.com/allisson/lightldap/internal/directory/domain"
	directoryMocks "github.com/allisson/lightldap/internal/directory/usecase/mocks"
)

var (
	adminClaims    = &authDomain.Claims{UserID: "admin", Groups: []string{domain.AdminGroup}}
	readonlyClaims = &authDomain.Claims{UserID: "auditor", Groups: []string{domain.ReadonlyGroup}}
	aliceClaims    = &authDomain.Claims{UserID: "alice", Groups: []string{"eng"}}
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupDirectoryMock(t *testing.T) *directoryMocks.MockBackendHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return &directoryMocks.MockBackendHandler{}
}

// createTestContext creates a test Gin context with the given request and principal.
func createTestContext(
	method, path string,
	body interface{},
	claims *authDomain.Claims,
	params gin.Params,
) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		req = req.WithContext(authHTTP.WithClaims(req.Context(), claims))
	}
	c.Request = req
	c.Params = params

	return c, w
}

func idParam(id string) gin.Params {
	return gin.Params{{Key: "id", Value: id}}
}

func strPtr(s string) *string {
	return &s
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

