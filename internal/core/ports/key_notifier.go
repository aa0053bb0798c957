package ports

import (
	"context"

	"github.com/advcontrato/account-service/internal/core/domain"
)

// KeyNotifier hands generated activation keys to an out-of-band delivery
// channel (mail, SMS, ...).
type KeyNotifier interface {
	NotifyKeyIssued(ctx context.Context, event domain.KeyIssued) error
}
