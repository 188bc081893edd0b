package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/modular_monolith/internal/models"
)

func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	return s.db.WithContext(ctx).Create(role).Error
}

func (s *Store) RoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *Store) AddRoleClaim(ctx context.Context, claim *models.RoleClaim) error {
	return s.db.WithContext(ctx).Create(claim).Error
}

func (s *Store) RoleClaims(ctx context.Context, roleID uint) ([]models.RoleClaim, error) {
	var claims []models.RoleClaim
	if err := s.db.WithContext(ctx).Where("role_id = ?", roleID).Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// RoleOfUser resolves the user's role. Users hold at most one role, the first
// assignment wins; a user without one gets (nil, nil).
func (s *Store) RoleOfUser(ctx context.Context, userID string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("user_roles.id").
		First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// ReplaceUserRole drops every role assignment the user has and installs the
// given one, keeping the one-role invariant even when called with the role
// the user already holds.
func (s *Store) ReplaceUserRole(ctx context.Context, userID string, roleID uint) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserRole{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&models.UserRole{UserID: userID, RoleID: roleID}).Error
}
