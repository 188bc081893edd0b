package seed

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Skotchmaster/modular_monolith/internal/hash"
	"github.com/Skotchmaster/modular_monolith/internal/models"
	"github.com/Skotchmaster/modular_monolith/internal/policies"
	"github.com/Skotchmaster/modular_monolith/internal/store"
)

// Users bootstraps the Admin and Manager roles plus one account for each.
// Runs once: when any user already exists the whole step is skipped.
func Users(ctx context.Context, log *slog.Logger, st *store.Store) error {
	exist, err := st.UsersExist(ctx)
	if err != nil {
		return err
	}
	if exist {
		log.Info("users already exist, skipping user seeding")
		return nil
	}

	log.Info("starting user seeding")

	return st.Transaction(ctx, func(tx *store.Store) error {
		adminRole := &models.Role{Name: "Admin"}
		managerRole := &models.Role{Name: "Manager"}

		if err := tx.CreateRole(ctx, adminRole); err != nil {
			return err
		}
		if err := tx.CreateRole(ctx, managerRole); err != nil {
			return err
		}

		adminClaims := []string{
			policies.UsersRead,
			policies.UsersCreate,
			policies.UsersUpdate,
			policies.UsersDelete,
		}
		for _, claim := range adminClaims {
			err := tx.AddRoleClaim(ctx, &models.RoleClaim{RoleID: adminRole.ID, Claim: claim, Value: "true"})
			if err != nil {
				return err
			}
		}

		if err := createUser(ctx, tx, "admin@test.com", adminRole.ID); err != nil {
			return err
		}
		if err := createUser(ctx, tx, "manager@test.com", managerRole.ID); err != nil {
			return err
		}

		log.Info("user seeding completed")
		return nil
	})
}

func createUser(ctx context.Context, tx *store.Store, email string, roleID uint) error {
	passwordHash, err := hash.HashPassword("Test1234!")
	if err != nil {
		return err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := tx.CreateUser(ctx, user); err != nil {
		return err
	}

	return tx.ReplaceUserRole(ctx, user.ID, roleID)
}
