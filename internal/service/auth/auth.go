package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Skotchmaster/modular_monolith/internal/apperr"
	"github.com/Skotchmaster/modular_monolith/internal/hash"
	"github.com/Skotchmaster/modular_monolith/internal/models"
	"github.com/Skotchmaster/modular_monolith/internal/mykafka"
	"github.com/Skotchmaster/modular_monolith/internal/revocation"
	"github.com/Skotchmaster/modular_monolith/internal/store"
	"github.com/Skotchmaster/modular_monolith/internal/tokens"
)

// Service orchestrates the token lifecycle: login, refresh-with-rotation and
// role updates with immediate revocation of outstanding tokens.
type Service struct {
	log      *slog.Logger
	store    *store.Store
	issuer   *tokens.Issuer
	cache    *revocation.Cache
	producer *mykafka.Producer
}

func NewService(log *slog.Logger, st *store.Store, issuer *tokens.Issuer, cache *revocation.Cache, producer *mykafka.Producer) *Service {
	return &Service{
		log:      log,
		store:    st,
		issuer:   issuer,
		cache:    cache,
		producer: producer,
	}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func errInvalidToken() error {
	return apperr.NewValidation("users.invalid_token", "invalid token")
}

func errInvalidCredentials() error {
	return apperr.NewValidation("users.invalid_credentials", "invalid email or password")
}

// Login verifies credentials and issues a fresh token pair. A missing user
// and a wrong password carry the same message so the response cannot be used
// for account enumeration; internally they are logged apart.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	const op = "auth.Login"

	log := s.log.With(slog.String("op", op))

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("user not found", "email", email)
			return TokenPair{}, apperr.NewNotFound("users.not_found", fmt.Sprintf("user with email %s not found", email))
		}
		return TokenPair{}, apperr.Wrap(op, err)
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		log.Info("invalid password", "user_id", user.ID)
		return TokenPair{}, errInvalidCredentials()
	}

	pair, err := s.issueTokens(ctx, user, "")
	if err != nil {
		return TokenPair{}, err
	}

	s.publish(ctx, "user_logged_in", user)

	return pair, nil
}

// Refresh validates the presented pair and rotates it. Every violation in
// the chain collapses to the same invalid-token outcome; the specific reason
// is only logged, never surfaced.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	const op = "auth.Refresh"

	log := s.log.With(slog.String("op", op))

	claims := s.issuer.ParsePresented(accessToken)
	if claims == nil {
		log.Warn("presented access token failed validation")
		return TokenPair{}, errInvalidToken()
	}

	jti := tokens.StringClaim(claims, "jti")
	if jti == "" {
		log.Warn("presented access token has no jti")
		return TokenPair{}, errInvalidToken()
	}

	stored, err := s.store.RefreshTokenByValue(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("refresh token does not exist")
			return TokenPair{}, errInvalidToken()
		}
		return TokenPair{}, apperr.Wrap(op, err)
	}

	if time.Now().After(stored.ExpiresAt) {
		log.Warn("refresh token has expired")
		return TokenPair{}, errInvalidToken()
	}

	if stored.Invalidated {
		log.Warn("refresh token has been invalidated")
		return TokenPair{}, errInvalidToken()
	}

	if stored.JwtID != jti {
		log.Warn("refresh token does not match this JWT")
		return TokenPair{}, errInvalidToken()
	}

	userID := tokens.StringClaim(claims, "userid")
	if userID == "" {
		log.Warn("presented access token has no userid")
		return TokenPair{}, errInvalidToken()
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("current user is not found", "user_id", userID)
			return TokenPair{}, errInvalidToken()
		}
		return TokenPair{}, apperr.Wrap(op, err)
	}

	pair, err := s.issueTokens(ctx, user, refreshToken)
	if err != nil {
		// A concurrent refresh already rotated this token away; the loser
		// gets the same invalid-token answer as any other stale presenter.
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("refresh token rotated concurrently")
			return TokenPair{}, errInvalidToken()
		}
		return TokenPair{}, err
	}

	return pair, nil
}

// UpdateUserRole moves the user to newRole, invalidates every live refresh
// token of the user and puts their jwt ids on the revocation list, so the
// change takes hold before outstanding access tokens expire on their own.
func (s *Service) UpdateUserRole(ctx context.Context, userID, newRole string) error {
	const op = "auth.UpdateUserRole"

	log := s.log.With(slog.String("op", op), slog.String("user_id", userID))

	role, err := s.store.RoleByName(ctx, newRole)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("role does not exist", "role", newRole)
			return apperr.NewNotFound("users.role_not_found", fmt.Sprintf("role '%s' not found", newRole))
		}
		return apperr.Wrap(op, err)
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NewNotFound("users.not_found", fmt.Sprintf("user with ID %s not found", userID))
		}
		return apperr.Wrap(op, err)
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.ReplaceUserRole(ctx, user.ID, role.ID); err != nil {
			return &apperr.Error{Kind: apperr.Failure, Code: "users.update_role_failed", Message: "failed to assign role", Err: err}
		}

		jwtIDs, err := tx.InvalidateUserRefreshTokens(ctx, user.ID)
		if err != nil {
			return apperr.Wrap(op, err)
		}

		for _, jti := range jwtIDs {
			s.cache.Revoke(jti, revocation.RoleChanged)
		}
		return nil
	})
	if err != nil {
		log.Error("role update failed", "error", err)
		return err
	}

	log.Info("role updated", "role", newRole)

	s.publish(ctx, "user_role_changed", user)

	return nil
}

// issueTokens resolves the user's role and claims, signs a new access token
// and persists the refresh token bound to its jti. When existingRefreshToken
// is set the old row is rotated away in the same transaction.
func (s *Service) issueTokens(ctx context.Context, user *models.User, existingRefreshToken string) (TokenPair, error) {
	const op = "auth.issueTokens"

	role, err := s.store.RoleOfUser(ctx, user.ID)
	if err != nil {
		return TokenPair{}, apperr.Wrap(op, err)
	}

	roleName := "user"
	var roleClaims []models.RoleClaim
	if role != nil {
		roleName = role.Name
		roleClaims, err = s.store.RoleClaims(ctx, role.ID)
		if err != nil {
			return TokenPair{}, apperr.Wrap(op, err)
		}
	}

	accessToken, jti, err := s.issuer.IssueAccessToken(*user, roleName, roleClaims)
	if err != nil {
		return TokenPair{}, apperr.Wrap(op, err)
	}

	refreshToken := &models.RefreshToken{
		Token:     s.issuer.NewRefreshToken(),
		JwtID:     jti,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.issuer.RefreshTTL),
	}

	if existingRefreshToken != "" {
		err = s.store.RotateRefreshToken(ctx, existingRefreshToken, refreshToken)
	} else {
		err = s.store.CreateRefreshToken(ctx, refreshToken)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, err
		}
		return TokenPair{}, apperr.Wrap(op, err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken.Token}, nil
}

func (s *Service) publish(ctx context.Context, eventType string, user *models.User) {
	event := map[string]interface{}{
		"type":    eventType,
		"user_id": user.ID,
		"email":   user.Email,
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.producer.PublishEvent(ctx, user.ID, event); err != nil {
		s.log.Warn("kafka publish error", "error", err)
	}
}
