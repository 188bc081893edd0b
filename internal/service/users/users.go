package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/Skotchmaster/modular_monolith/internal/apperr"
	"github.com/Skotchmaster/modular_monolith/internal/hash"
	"github.com/Skotchmaster/modular_monolith/internal/models"
	"github.com/Skotchmaster/modular_monolith/internal/mykafka"
	"github.com/Skotchmaster/modular_monolith/internal/service/search"
	"github.com/Skotchmaster/modular_monolith/internal/store"
)

// Service owns the plain user records: registration, lookup, update and
// delete. Role changes with token revocation live in the auth service.
type Service struct {
	log      *slog.Logger
	store    *store.Store
	producer *mykafka.Producer
	es       *elasticsearch.Client
	esIndex  string
}

func NewService(log *slog.Logger, st *store.Store, producer *mykafka.Producer, es *elasticsearch.Client, esIndex string) *Service {
	return &Service{
		log:      log,
		store:    st,
		producer: producer,
		es:       es,
		esIndex:  esIndex,
	}
}

type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func errUserNotFound(userID string) error {
	return apperr.NewNotFound("users.not_found", fmt.Sprintf("user with ID %s not found", userID))
}

func (s *Service) Register(ctx context.Context, email, password, role string) (UserDTO, error) {
	const op = "users.Register"

	log := s.log.With(slog.String("op", op))

	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return UserDTO{}, apperr.NewConflict("users.registration_failed", "user already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return UserDTO{}, apperr.Wrap(op, err)
	}

	passwordHash, err := hash.HashPassword(password)
	if err != nil {
		return UserDTO{}, apperr.Wrap(op, err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		if role == "" {
			return nil
		}
		stored, err := tx.RoleByName(ctx, role)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NewNotFound("users.role_not_found", fmt.Sprintf("role '%s' not found", role))
			}
			return err
		}
		return tx.ReplaceUserRole(ctx, user.ID, stored.ID)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return UserDTO{}, err
		}
		return UserDTO{}, apperr.Wrap(op, err)
	}

	log.Info("created user", "user_id", user.ID)

	s.publish(ctx, "user_registered", user)
	s.index(ctx, user, s.roleNameOf(ctx, user.ID))

	return UserDTO{ID: user.ID, Email: user.Email}, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (UserDTO, error) {
	const op = "users.GetByID"

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Info("user not found", "op", op, "user_id", userID)
			return UserDTO{}, errUserNotFound(userID)
		}
		return UserDTO{}, apperr.Wrap(op, err)
	}

	return UserDTO{ID: user.ID, Email: user.Email}, nil
}

// Update changes the user's email and, when role is non-empty, moves the
// user to that role. This path does not touch refresh tokens; only the
// dedicated role-update flow revokes outstanding sessions.
func (s *Service) Update(ctx context.Context, userID, email, role string) (UserDTO, error) {
	const op = "users.Update"

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UserDTO{}, errUserNotFound(userID)
		}
		return UserDTO{}, apperr.Wrap(op, err)
	}

	user.Email = strings.ToLower(strings.TrimSpace(email))
	user.UpdatedAt = time.Now()

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.SaveUser(ctx, user); err != nil {
			return err
		}
		if role == "" {
			return nil
		}
		stored, err := tx.RoleByName(ctx, role)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NewNotFound("users.role_not_found", fmt.Sprintf("role '%s' not found", role))
			}
			return err
		}
		return tx.ReplaceUserRole(ctx, user.ID, stored.ID)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return UserDTO{}, err
		}
		return UserDTO{}, apperr.Wrap(op, err)
	}

	s.log.Info("updated user", "op", op, "user_id", userID)

	s.publish(ctx, "user_updated", user)
	s.index(ctx, user, s.roleNameOf(ctx, user.ID))

	return UserDTO{ID: user.ID, Email: user.Email}, nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	const op = "users.Delete"

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errUserNotFound(userID)
		}
		return apperr.Wrap(op, err)
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return apperr.Wrap(op, err)
	}

	s.log.Info("deleted user", "op", op, "user_id", userID)

	s.publish(ctx, "user_deleted", user)

	if s.es != nil {
		if err := search.DeleteUser(ctx, s.es, s.esIndex, userID); err != nil {
			s.log.Warn("elasticsearch delete error", "error", err)
		}
	}

	return nil
}

// Search queries the elasticsearch index, guarded behind the users:read
// policy at the transport layer.
func (s *Service) Search(ctx context.Context, query string, from, size int) (int64, []search.UserDocument, error) {
	const op = "users.Search"

	if s.es == nil {
		return 0, nil, apperr.New(apperr.Custom, "users.search_unavailable", "search backend is not configured")
	}

	total, docs, err := search.Users(ctx, s.es, s.esIndex, query, from, size)
	if err != nil {
		return 0, nil, apperr.Wrap(op, err)
	}
	return total, docs, nil
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

func (s *Service) roleNameOf(ctx context.Context, userID string) string {
	role, err := s.store.RoleOfUser(ctx, userID)
	if err != nil || role == nil {
		return "user"
	}
	return role.Name
}

func (s *Service) index(ctx context.Context, user *models.User, roleName string) {
	if s.es == nil {
		return
	}
	doc := search.UserDocument{ID: user.ID, Email: user.Email, Role: roleName}
	if err := search.IndexUser(ctx, s.es, s.esIndex, doc); err != nil {
		s.log.Warn("elasticsearch index error", "error", err)
	}
}
