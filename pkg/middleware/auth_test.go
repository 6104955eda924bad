package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing"

func generateToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func subjectEcho() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(SubjectFromContext(r.Context())))
	}
}

func serveWithToken(token string) *httptest.ResponseRecorder {
	handler := AdminAuth(testSecret, newTestLogger())(subjectEcho())
	req := httptest.NewRequest(http.MethodPost, "/index/load", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestAdminAuth_ValidAdminToken(t *testing.T) {
	token := generateToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub":  "ops-1",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	rr := serveWithToken(token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ops-1", rr.Body.String())
}

func TestAdminAuth_FallsBackToUserIDClaim(t *testing.T) {
	token := generateToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"user_id": "ops-2",
		"role":    "admin",
	})

	rr := serveWithToken(token)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ops-2", rr.Body.String())
}

func TestAdminAuth_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  int
	}{
		{"missing header", func(*testing.T) string { return "" }, http.StatusUnauthorized},
		{"wrong secret", func(t *testing.T) string {
			return generateToken(t, jwt.SigningMethodHS256, "other", jwt.MapClaims{"role": "admin"})
		}, http.StatusUnauthorized},
		{"expired", func(t *testing.T) string {
			return generateToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
				"role": "admin",
				"exp":  time.Now().Add(-time.Minute).Unix(),
			})
		}, http.StatusUnauthorized},
		{"garbage", func(*testing.T) string { return "not.a.jwt" }, http.StatusUnauthorized},
		{"not admin", func(t *testing.T) string {
			return generateToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"role": "viewer"})
		}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveWithToken(tt.token(t))
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestAdminAuth_RejectsNonBearerScheme(t *testing.T) {
	handler := AdminAuth(testSecret, newTestLogger())(subjectEcho())
	req := httptest.NewRequest(http.MethodPost, "/index/load", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	code, _ := decodeError(t, rr.Body.Bytes())
	assert.Equal(t, "UNAUTHORIZED", code)
}
