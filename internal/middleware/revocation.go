package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/modular_monolith/internal/revocation"
	"github.com/Skotchmaster/modular_monolith/internal/tokens"
)

// RevocationCheck rejects requests whose access token was revoked by a role
// change before the token's natural expiry. Login and refresh paths are
// exempt (they do not rely on a prior session), as are anonymous or
// role-less principals.
func RevocationCheck(cache *revocation.Cache, skipPaths ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, p := range skipPaths {
				if strings.HasPrefix(c.Request().URL.Path, p) {
					return next(c)
				}
			}

			claims := ClaimsFromContext(c)
			if claims == nil {
				return next(c)
			}

			jti := tokens.StringClaim(claims, "jti")
			role := tokens.StringClaim(claims, "role")
			if jti == "" || role == "" {
				return next(c)
			}

			if _, revoked := cache.Reason(jti); revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
			}

			return next(c)
		}
	}
}
