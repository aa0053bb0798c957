package ports

import (
	"context"

	"github.com/advcontrato/account-service/internal/core/domain"
)

// AccountService exposes the account lifecycle operations.
type AccountService interface {
	RegisterUser(ctx context.Context, email, key string) (*domain.Account, error)
	// RegisterNewUser returns the created account with its generated key.
	RegisterNewUser(ctx context.Context, email string, keyValidityDays int) (*domain.Account, error)
	AuthenticateUser(ctx context.Context, email, key string) (domain.AuthResult, error)
	GetAllUsers(ctx context.Context) ([]*domain.Account, error)
	ResetUserKey(ctx context.Context, id, newKey string) error
	IsEmailRegistered(ctx context.Context, email string) (bool, error)
	DeactivateUser(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}
