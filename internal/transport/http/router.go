package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/modular_monolith/internal/handlers"
	mw "github.com/Skotchmaster/modular_monolith/internal/middleware"
	"github.com/Skotchmaster/modular_monolith/internal/policies"
	"github.com/Skotchmaster/modular_monolith/internal/revocation"
)

type Deps struct {
	AuthHandler *handlers.AuthHandler
	UserHandler *handlers.UserHandler
	JWTSecret   []byte
	Cache       *revocation.Cache
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	guards := policyGuards()

	v1 := e.Group("/api/v1")

	// Session bootstrap endpoints stay outside the authenticated group, the
	// revocation check does not apply to them.
	v1.POST("/users/register", d.AuthHandler.Register)
	v1.POST("/users/login", d.AuthHandler.Login)
	v1.POST("/users/refresh", d.AuthHandler.Refresh)

	users := v1.Group("/users",
		mw.AccessToken(d.JWTSecret),
		mw.RevocationCheck(d.Cache, "/api/v1/users/login", "/api/v1/users/refresh"),
	)

	users.GET("/search", d.UserHandler.SearchUsers, guards[policies.UsersRead])
	users.GET("/:id", d.UserHandler.GetUser, guards[policies.UsersRead])
	users.PUT("/:id", d.UserHandler.UpdateUser, guards[policies.UsersUpdate])
	users.DELETE("/:id", d.UserHandler.DeleteUser, guards[policies.UsersDelete])
	users.PUT("/:id/role", d.UserHandler.UpdateUserRole, guards[policies.UsersUpdate])
}

// policyGuards materializes the static policy registry into one claim guard
// per policy name.
func policyGuards() map[string]echo.MiddlewareFunc {
	guards := make(map[string]echo.MiddlewareFunc, len(policies.Registry))
	for _, module := range policies.Registry {
		for _, policy := range module.Policies {
			guards[policy] = mw.RequireClaim(policy)
		}
	}
	return guards
}
