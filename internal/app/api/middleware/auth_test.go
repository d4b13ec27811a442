package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, operator string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": operator,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authTestRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuthMiddleware(secret))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": c.GetString("operatorID")})
	})
	return r
}

func getProtected(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_ValidTokenSetsOperator(t *testing.T) {
	r := authTestRouter(testSecret)

	w := getProtected(r, "Bearer "+signToken(t, testSecret, "ops-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"operator":"ops-1"`)
}

func TestAdminAuth_MissingHeader(t *testing.T) {
	r := authTestRouter(testSecret)

	w := getProtected(r, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_WrongSecret(t *testing.T) {
	r := authTestRouter(testSecret)

	w := getProtected(r, "Bearer "+signToken(t, "other-secret", "ops-1"))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_ExpiredToken(t *testing.T) {
	r := authTestRouter(testSecret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	w := getProtected(r, "Bearer "+signed)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_NoSecretDisablesAPI(t *testing.T) {
	r := authTestRouter("")

	w := getProtected(r, "Bearer "+signToken(t, testSecret, "ops-1"))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
