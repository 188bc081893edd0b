package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/modular_monolith/internal/service/auth"
	"github.com/Skotchmaster/modular_monolith/internal/service/users"
)

type AuthHandler struct {
	Auth  *auth.Service
	Users *users.Service
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	user, err := h.Users.Register(c.Request().Context(), req.Email, req.Password, req.Role)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pair, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pair, err := h.Auth.Refresh(c.Request().Context(), req.Token, req.RefreshToken)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, pair)
}
