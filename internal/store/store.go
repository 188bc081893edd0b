package store

import (
	"context"

	"gorm.io/gorm"
)

// Store wraps the gorm handle for the users module. All multi-write flows go
// through Transaction so partial state never reaches the database.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn against a transaction-scoped Store. A returned error
// rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
