package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/modular_monolith/internal/config"
	"github.com/Skotchmaster/modular_monolith/internal/handlers"
	"github.com/Skotchmaster/modular_monolith/internal/revocation"
	"github.com/Skotchmaster/modular_monolith/internal/seed"
	authsvc "github.com/Skotchmaster/modular_monolith/internal/service/auth"
	userssvc "github.com/Skotchmaster/modular_monolith/internal/service/users"
	"github.com/Skotchmaster/modular_monolith/internal/store"
	"github.com/Skotchmaster/modular_monolith/internal/tokens"
	httpserver "github.com/Skotchmaster/modular_monolith/internal/transport/http"
)

type app struct {
	E     *echo.Echo
	Store *store.Store
	Cache *revocation.Cache
}

func newTestApp(t *testing.T) *app {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	require.NoError(t, config.Migrate(db))

	st := store.New(db)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, seed.Users(context.Background(), log, st))

	secret := []byte("test-secret")
	issuer := &tokens.Issuer{
		Secret:     secret,
		Issuer:     "modular-monolith",
		Audience:   "modular-monolith-clients",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
	cache := revocation.NewCache(issuer.AccessTTL)
	t.Cleanup(cache.Close)

	authService := authsvc.NewService(log, st, issuer, cache, nil)
	usersService := userssvc.NewService(log, st, nil, nil, "users")

	e := echo.New()
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{Auth: authService, Users: usersService},
		UserHandler: &handlers.UserHandler{Auth: authService, Users: usersService},
		JWTSecret:   secret,
		Cache:       cache,
	})

	return &app{E: e, Store: st, Cache: cache}
}

func (a *app) do(t *testing.T, method, path string, body interface{}, bearer string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	a.E.ServeHTTP(rec, req)
	return rec
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (a *app) login(t *testing.T, email, password string) tokenPair {
	rec := a.do(t, http.MethodPost, "/api/v1/users/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair tokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestRegisterLoginAndReadUser(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"email":    "user@test.com",
		"password": "Secret123!",
		"role":     "Admin",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "user@test.com", created.Email)

	pair := a.login(t, "user@test.com", "Secret123!")

	rec = a.do(t, http.MethodGet, "/api/v1/users/"+created.ID, nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	a := newTestApp(t)

	body := map[string]string{"email": "user@test.com", "password": "Secret123!"}
	rec := a.do(t, http.MethodPost, "/api/v1/users/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/users/register", body, "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefreshRotation(t *testing.T) {
	a := newTestApp(t)
	pair := a.login(t, "admin@test.com", "Test1234!")

	rec := a.do(t, http.MethodPost, "/api/v1/users/refresh", map[string]string{
		"token":         pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var next tokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The old refresh token died with the rotation.
	rec = a.do(t, http.MethodPost, "/api/v1/users/refresh", map[string]string{
		"token":         pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The new pair supports a further refresh.
	rec = a.do(t, http.MethodPost, "/api/v1/users/refresh", map[string]string{
		"token":         next.AccessToken,
		"refresh_token": next.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRefreshTamperedToken(t *testing.T) {
	a := newTestApp(t)
	pair := a.login(t, "admin@test.com", "Test1234!")

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	rec := a.do(t, http.MethodPost, "/api/v1/users/refresh", map[string]string{
		"token":         tampered,
		"refresh_token": pair.RefreshToken,
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoleChangeRevokesAccessImmediately(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	managerPair := a.login(t, "manager@test.com", "Test1234!")
	adminPair := a.login(t, "admin@test.com", "Test1234!")

	manager, err := a.Store.UserByEmail(ctx, "manager@test.com")
	require.NoError(t, err)

	// Before the role change the manager token is authenticated but lacks
	// the users:read claim.
	rec := a.do(t, http.MethodGet, "/api/v1/users/"+manager.ID, nil, managerPair.AccessToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/v1/users/"+manager.ID+"/role", map[string]string{
		"new_role": "Admin",
	}, adminPair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The still-unexpired manager token is now rejected outright by the
	// revocation check, before any policy decision.
	rec = a.do(t, http.MethodGet, "/api/v1/users/"+manager.ID, nil, managerPair.AccessToken)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// A fresh login picks up the new role and its claims.
	fresh := a.login(t, "manager@test.com", "Test1234!")
	rec = a.do(t, http.MethodGet, "/api/v1/users/"+manager.ID, nil, fresh.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestProtectedRouteRejectsGarbageToken(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodGet, "/api/v1/users/some-id", nil, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/api/v1/users/register", map[string]string{
		"email":    "user@test.com",
		"password": "Secret123!",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	adminPair := a.login(t, "admin@test.com", "Test1234!")

	rec = a.do(t, http.MethodDelete, "/api/v1/users/"+created.ID, nil, adminPair.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/users/"+created.ID, nil, adminPair.AccessToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
