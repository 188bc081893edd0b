package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/modular_monolith/internal/revocation"
)

func newContext(t *testing.T, path string, claims jwt.MapClaims) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if claims != nil {
		c.Set("user", &jwt.Token{Claims: claims})
	}
	return c, rec
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRevocationCheckRejectsRevokedToken(t *testing.T) {
	cache := revocation.NewCache(time.Minute)
	defer cache.Close()
	cache.Revoke("jti-1", revocation.RoleChanged)

	c, _ := newContext(t, "/api/v1/users/abc", jwt.MapClaims{"jti": "jti-1", "role": "Manager"})

	err := RevocationCheck(cache)(okHandler)(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestRevocationCheckPassesLiveToken(t *testing.T) {
	cache := revocation.NewCache(time.Minute)
	defer cache.Close()

	c, rec := newContext(t, "/api/v1/users/abc", jwt.MapClaims{"jti": "jti-1", "role": "Manager"})

	require.NoError(t, RevocationCheck(cache)(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRevocationCheckPassesAnonymousAndRoleless(t *testing.T) {
	cache := revocation.NewCache(time.Minute)
	defer cache.Close()
	cache.Revoke("jti-1", revocation.Invalidated)

	// No principal at all.
	c, rec := newContext(t, "/api/v1/users/abc", nil)
	require.NoError(t, RevocationCheck(cache)(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Principal without a role claim.
	c, rec = newContext(t, "/api/v1/users/abc", jwt.MapClaims{"jti": "jti-1"})
	require.NoError(t, RevocationCheck(cache)(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRevocationCheckSkipsExemptPaths(t *testing.T) {
	cache := revocation.NewCache(time.Minute)
	defer cache.Close()
	cache.Revoke("jti-1", revocation.RoleChanged)

	c, rec := newContext(t, "/api/v1/users/login", jwt.MapClaims{"jti": "jti-1", "role": "Manager"})

	mw := RevocationCheck(cache, "/api/v1/users/login", "/api/v1/users/refresh")
	require.NoError(t, mw(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireClaim(t *testing.T) {
	c, rec := newContext(t, "/api/v1/users/abc", jwt.MapClaims{"users:read": "true", "role": "Admin"})
	require.NoError(t, RequireClaim("users:read")(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	c, _ = newContext(t, "/api/v1/users/abc", jwt.MapClaims{"role": "Manager"})
	err := RequireClaim("users:read")(okHandler)(c)
	require.Error(t, err)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, he.Code)

	c, _ = newContext(t, "/api/v1/users/abc", nil)
	err = RequireClaim("users:read")(okHandler)(c)
	require.Error(t, err)
	he, ok = err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, he.Code)
}
