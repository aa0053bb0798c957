package ports

import (
	"context"

	"github.com/advcontrato/account-service/internal/core/domain"
)

// AccountRepository persists accounts in the document store.
//
// Lookups return domain.ErrAccountNotFound when nothing matches. Driver
// failures are wrapped with domain.ErrStoreUnavailable.
type AccountRepository interface {
	// Create inserts a new account. Unique-index conflicts surface as
	// domain.ErrDuplicateEmail or domain.ErrDuplicateKey.
	Create(ctx context.Context, account *domain.Account) error
	FindByKey(ctx context.Context, key string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByCredentials(ctx context.Context, email, key string) (*domain.Account, error)
	FindAll(ctx context.Context) ([]*domain.Account, error)

	// Activate flips activated to true only while it is still false. It reports
	// whether this call performed the transition.
	Activate(ctx context.Context, id string) (bool, error)

	// ResetKey stores key, clears activated and drops any key expiration.
	//
	// ResetKey and Deactivate return domain.ErrAccountNotFound when no account
	// has the id and domain.ErrAccountUnchanged when the account already holds
	// the requested values.
	ResetKey(ctx context.Context, id, key string) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
