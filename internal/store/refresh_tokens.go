package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/modular_monolith/internal/models"
)

func (s *Store) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *Store) RefreshTokenByValue(ctx context.Context, token string) (*models.RefreshToken, error) {
	var stored models.RefreshToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// RotateRefreshToken deletes the prior token of the chain and persists the
// replacement in the same transaction. Two concurrent rotations of the same
// token race on the delete; the loser finds zero rows and fails, giving
// at-most-one-winner-per-token semantics.
func (s *Store) RotateRefreshToken(ctx context.Context, oldToken string, replacement *models.RefreshToken) error {
	return s.Transaction(ctx, func(tx *Store) error {
		res := tx.db.Where("token = ?", oldToken).Delete(&models.RefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.db.Create(replacement).Error
	})
}

// InvalidateUserRefreshTokens flips the invalidated flag on every live
// refresh token of the user and returns the jwt ids they were bound to, so
// the caller can feed the revocation cache.
func (s *Store) InvalidateUserRefreshTokens(ctx context.Context, userID string) ([]string, error) {
	var stored []models.RefreshToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND invalidated = ?", userID, false).
		Find(&stored).Error
	if err != nil {
		return nil, err
	}

	jwtIDs := make([]string, 0, len(stored))
	now := time.Now()
	for i := range stored {
		stored[i].Invalidated = true
		stored[i].UpdatedAt = now
		if err := s.db.WithContext(ctx).Save(&stored[i]).Error; err != nil {
			return nil, err
		}
		jwtIDs = append(jwtIDs, stored[i].JwtID)
	}

	return jwtIDs, nil
}
