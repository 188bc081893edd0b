package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/modular_monolith/internal/apperr"
)

// httpError maps a service error to a transport error. Only the tagged
// message of an *apperr.Error is exposed, unexpected causes stay in logs.
func httpError(err error) *echo.HTTPError {
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind != apperr.Unexpected {
		return echo.NewHTTPError(apperr.HTTPStatus(err), e.Message)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
