package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-with-enough-length"

func signToken(t *testing.T, secret, subject string, expiresIn time.Duration) string {
	t.Helper()

	claims := &Claims{
		Email: "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedHandler(t *testing.T, wantUserID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r)
		require.NotNil(t, claims)
		assert.Equal(t, wantUserID, claims.UserID())
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)
	token := signToken(t, testSecret, "user-123", time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Middleware(verifier)(protectedHandler(t, "user-123")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	rec := httptest.NewRecorder()

	Middleware(verifier)(protectedHandler(t, "")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.Header.Set("Authorization", "Token abc123")
	rec := httptest.NewRecorder()

	Middleware(verifier)(protectedHandler(t, "")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_WrongSecret(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)
	token := signToken(t, "a-different-secret-entirely-here", "user-123", time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Middleware(verifier)(protectedHandler(t, "")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)
	token := signToken(t, testSecret, "user-123", -time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	Middleware(verifier)(protectedHandler(t, "")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerify_MissingSubject(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)
	token := signToken(t, testSecret, "", time.Minute)

	_, err := verifier.Verify(token)
	assert.Error(t, err)
}
