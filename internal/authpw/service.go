// Package authpw provides password authentication for admin operators.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"millwright/api/internal/store"
)

// OperatorStore defines the storage interface for operator lookup.
type OperatorStore interface {
	GetOperatorByEmail(ctx context.Context, email string) (store.Operator, error)
}

// Service authenticates operators against stored bcrypt hashes.
type Service struct {
	store OperatorStore
}

func NewService(store OperatorStore) *Service {
	return &Service{store: store}
}

// ErrInvalidCredentials is returned for any sign-in failure so callers
// cannot distinguish unknown emails from wrong passwords.
var ErrInvalidCredentials = errors.New("invalid email or password")

// SignInRequest contains sign-in parameters.
type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates an operator.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.Operator, error) {
	if req.Email == "" || req.Password == "" {
		return store.Operator{}, ErrInvalidCredentials
	}

	op, err := s.store.GetOperatorByEmail(ctx, req.Email)
	if err != nil {
		return store.Operator{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return store.Operator{}, ErrInvalidCredentials
	}

	return op, nil
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NewRefreshToken creates a secure random refresh token value.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
