package server

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username taken")

// UserStore provides persistence for accounts.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// AutoMigrate creates or updates the users table.
func (s *UserStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("auto-migrate users: %w", err)
	}
	return nil
}

// Create registers a new account with a bcrypt-hashed password.
func (s *UserStore) Create(username, password string) (*User, error) {
	existing, err := s.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := User{Username: username, PasswordHash: hash}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// GetByUsername returns the account, or nil, nil when none exists.
func (s *UserStore) GetByUsername(username string) (*User, error) {
	var user User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// Authenticate returns the account when the credentials match, nil otherwise.
func (s *UserStore) Authenticate(username, password string) (*User, error) {
	user, err := s.GetByUsername(username)
	if err != nil || user == nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, nil
	}
	return user, nil
}
