package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/modular_monolith/internal/service/auth"
	"github.com/Skotchmaster/modular_monolith/internal/service/users"
)

type UserHandler struct {
	Auth  *auth.Service
	Users *users.Service
}

func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.Users.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	user, err := h.Users.Update(c.Request().Context(), c.Param("id"), req.Email, req.Role)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	if err := h.Users.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) UpdateUserRole(c echo.Context) error {
	var req struct {
		NewRole string `json:"new_role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.NewRole == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "new_role is required")
	}

	if err := h.Auth.UpdateUserRole(c.Request().Context(), c.Param("id"), req.NewRole); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "role updated"})
}

func (h *UserHandler) SearchUsers(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	from, _ := strconv.Atoi(c.QueryParam("from"))
	size, err := strconv.Atoi(c.QueryParam("size"))
	if err != nil || size <= 0 {
		size = 20
	}

	total, hits, err := h.Users.Search(c.Request().Context(), query, from, size)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total": total,
		"users": hits,
	})
}
