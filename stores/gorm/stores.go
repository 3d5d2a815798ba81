// Package gorm implements the otherus stores on a SQL database through
// GORM, for deployments that would rather point the service at their
// existing relational database than run Redis. The caller supplies the
// *gorm.DB (and so picks the driver); run AutoMigrate once at startup.
package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/other-realm/otherus"
)

// AutoMigrate creates or updates the otherus tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{}, &EmailModel{}, &StateModel{})
}

// Store implements UserStore, IdentityStore and StateStore on GORM.
type Store struct {
	db *gorm.DB
}

// New wraps an existing GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateUser(ctx context.Context, user *otherus.User) error {
	if err := s.db.WithContext(ctx).Create(toModel(user)).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (*otherus.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, otherus.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return model.ToUser(), nil
}

func (s *Store) SaveUser(ctx context.Context, user *otherus.User) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", user.ID).
		Updates(toModel(user))
	if res.Error != nil {
		return fmt.Errorf("save user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return otherus.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", userID)
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return otherus.ErrNotFound
	}
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

func (s *Store) ResolveEmail(ctx context.Context, email string) (string, error) {
	var binding EmailModel
	err := s.db.WithContext(ctx).First(&binding, "email = ?", otherus.NormalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", otherus.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve email: %w", err)
	}
	return binding.UserID, nil
}

func (s *Store) BindEmail(ctx context.Context, email, userID string) error {
	binding := EmailModel{Email: otherus.NormalizeEmail(email), UserID: userID}
	err := s.db.WithContext(ctx).Create(&binding).Error
	if err == nil {
		return nil
	}
	// The primary key makes a concurrent duplicate bind fail at the
	// database; report it as the duplicate it is.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return otherus.ErrDuplicateEmail
	}
	var existing EmailModel
	if s.db.WithContext(ctx).First(&existing, "email = ?", binding.Email).Error == nil {
		return otherus.ErrDuplicateEmail
	}
	return fmt.Errorf("bind email: %w", err)
}

func (s *Store) UnbindEmail(ctx context.Context, email string) error {
	err := s.db.WithContext(ctx).Delete(&EmailModel{}, "email = ?", otherus.NormalizeEmail(email)).Error
	if err != nil {
		return fmt.Errorf("unbind email: %w", err)
	}
	return nil
}

func (s *Store) IssueState(ctx context.Context, state, provider string, ttl time.Duration) error {
	row := StateModel{State: state, Provider: provider, ExpiresAt: time.Now().UTC().Add(ttl)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("issue state: %w", err)
	}
	return nil
}

func (s *Store) ConsumeState(ctx context.Context, state string) (string, error) {
	var provider string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row StateModel
		if err := tx.First(&row, "state = ?", state).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return otherus.ErrInvalidState
			}
			return fmt.Errorf("consume state: %w", err)
		}
		if err := tx.Delete(&StateModel{}, "state = ?", state).Error; err != nil {
			return fmt.Errorf("consume state: %w", err)
		}
		if time.Now().UTC().After(row.ExpiresAt) {
			return otherus.ErrInvalidState
		}
		provider = row.Provider
		return nil
	})
	if err != nil {
		return "", err
	}
	// SQL has no native TTL; sweep whatever else has lapsed.
	s.db.WithContext(ctx).Delete(&StateModel{}, "expires_at < ?", time.Now().UTC())
	return provider, nil
}
