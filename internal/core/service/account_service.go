package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/advcontrato/account-service/internal/core/domain"
	"github.com/advcontrato/account-service/internal/core/ports"
	"github.com/advcontrato/account-service/internal/pkg/metrics"
)

// keySize is the number of random bytes behind a generated activation key.
const keySize = 16

const (
	pathCallerKey    = "caller_key"
	pathGeneratedKey = "generated_key"
)

// Options tunes AccountService behaviour.
type Options struct {
	// EnforceKeyExpiration rejects activation once KeyExpiration has passed.
	EnforceKeyExpiration bool
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

var _ ports.AccountService = (*AccountService)(nil)

// AccountService implements the account lifecycle on top of an AccountRepository.
type AccountService struct {
	repo     ports.AccountRepository
	notifier ports.KeyNotifier
	logger   zerolog.Logger
	enforce  bool
	now      func() time.Time
}

func NewAccountService(repo ports.AccountRepository, notifier ports.KeyNotifier, logger zerolog.Logger, opts Options) *AccountService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AccountService{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		enforce:  opts.EnforceKeyExpiration,
		now:      now,
	}
}

// RegisterUser creates an unactivated account with a caller-supplied key. The
// key must not belong to any other account.
func (s *AccountService) RegisterUser(ctx context.Context, email, key string) (*domain.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		metrics.RegistrationsTotal.WithLabelValues(pathCallerKey, "invalid").Inc()
		return nil, domain.ErrInvalidEmail
	}
	if key == "" {
		metrics.RegistrationsTotal.WithLabelValues(pathCallerKey, "invalid").Inc()
		return nil, domain.ErrInvalidKey
	}

	if _, err := s.repo.FindByKey(ctx, key); err == nil {
		metrics.RegistrationsTotal.WithLabelValues(pathCallerKey, "duplicate_key").Inc()
		return nil, domain.ErrDuplicateKey
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		metrics.RegistrationsTotal.WithLabelValues(pathCallerKey, "error").Inc()
		return nil, err
	}

	account := s.newAccount(email, key, time.Time{})
	if err := s.repo.Create(ctx, account); err != nil {
		metrics.RegistrationsTotal.WithLabelValues(pathCallerKey, registrationResult(err)).Inc()
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(pathCallerKey, "created").Inc()
	s.logger.Info().Str("account_id", account.ID).Str("email", account.Email).Msg("account registered")
	return account, nil
}

// RegisterNewUser creates an unactivated account for an email not yet
// registered. A fresh key valid for keyValidityDays is generated, returned on
// the account and handed to the KeyNotifier for delivery.
func (s *AccountService) RegisterNewUser(ctx context.Context, email string, keyValidityDays int) (*domain.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		metrics.RegistrationsTotal.WithLabelValues(pathGeneratedKey, "invalid").Inc()
		return nil, domain.ErrInvalidEmail
	}
	if keyValidityDays <= 0 {
		metrics.RegistrationsTotal.WithLabelValues(pathGeneratedKey, "invalid").Inc()
		return nil, domain.ErrInvalidKeyValidity
	}

	registered, err := s.IsEmailRegistered(ctx, email)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(pathGeneratedKey, "error").Inc()
		return nil, err
	}
	if registered {
		metrics.RegistrationsTotal.WithLabelValues(pathGeneratedKey, "duplicate_email").Inc()
		return nil, domain.ErrDuplicateEmail
	}

	expiration := s.now().UTC().AddDate(0, 0, keyValidityDays)
	account := s.newAccount(email, GenerateEncryptedKey(), expiration)

	// The unique email index settles concurrent registrations that both
	// passed the lookup above.
	if err := s.repo.Create(ctx, account); err != nil {
		metrics.RegistrationsTotal.WithLabelValues(pathGeneratedKey, registrationResult(err)).Inc()
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues(pathGeneratedKey, "created").Inc()
	s.logger.Info().
		Str("account_id", account.ID).
		Str("email", account.Email).
		Time("key_expiration", account.KeyExpiration).
		Msg("account registered with generated key")

	s.notifyKeyIssued(ctx, account)
	return account, nil
}

// AuthenticateUser activates the account matching email and key. Business
// failures are reported through the result; the error carries store failures only.
func (s *AccountService) AuthenticateUser(ctx context.Context, email, key string) (domain.AuthResult, error) {
	result, err := s.authenticate(ctx, email, key)
	if err != nil {
		metrics.ActivationsTotal.WithLabelValues("error").Inc()
		return domain.AuthResult{}, err
	}
	metrics.ActivationsTotal.WithLabelValues(result.Outcome.String()).Inc()
	return result, nil
}

func (s *AccountService) authenticate(ctx context.Context, email, key string) (domain.AuthResult, error) {
	account, err := s.repo.FindByCredentials(ctx, email, key)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.AuthResult{Outcome: domain.AuthInvalidCredentials}, nil
	}
	if err != nil {
		return domain.AuthResult{}, err
	}

	if account.Activated {
		return domain.AuthResult{Outcome: domain.AuthAlreadyActivated, Account: account}, nil
	}

	if s.enforce && account.KeyExpired(s.now().UTC()) {
		s.logger.Info().Str("account_id", account.ID).Msg("activation rejected: key expired")
		return domain.AuthResult{Outcome: domain.AuthKeyExpired, Account: account}, nil
	}

	activated, err := s.repo.Activate(ctx, account.ID)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !activated {
		// Another caller activated the account between the lookup and the update.
		account.Activated = true
		return domain.AuthResult{Outcome: domain.AuthAlreadyActivated, Account: account}, nil
	}

	account.Activated = true
	s.logger.Info().Str("account_id", account.ID).Msg("account activated")
	return domain.AuthResult{Outcome: domain.AuthActivated, Account: account}, nil
}

func (s *AccountService) GetAllUsers(ctx context.Context) ([]*domain.Account, error) {
	return s.repo.FindAll(ctx)
}

// ResetUserKey replaces the key of an account and marks it unactivated. The
// new key is operator-supplied and, like RegisterUser keys, never expires.
func (s *AccountService) ResetUserKey(ctx context.Context, id, newKey string) error {
	if newKey == "" {
		metrics.AdminOperationsTotal.WithLabelValues("reset_key", "invalid").Inc()
		return domain.ErrInvalidKey
	}
	err := s.repo.ResetKey(ctx, id, newKey)
	s.recordAdmin("reset_key", id, err)
	return err
}

func (s *AccountService) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	_, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *AccountService) DeactivateUser(ctx context.Context, id string) error {
	err := s.repo.Deactivate(ctx, id)
	s.recordAdmin("deactivate", id, err)
	return err
}

func (s *AccountService) DeleteUser(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	s.recordAdmin("delete", id, err)
	return err
}

// GenerateEncryptedKey returns 128 bits from crypto/rand, base64 encoded.
func GenerateEncryptedKey() string {
	b := make([]byte, keySize)
	// crypto/rand.Read never returns an error since Go 1.24.
	_, _ = rand.Read(b)
	return base64.StdEncoding.EncodeToString(b)
}

func (s *AccountService) newAccount(email, key string, expiration time.Time) *domain.Account {
	now := s.now().UTC()
	return &domain.Account{
		ID:            uuid.NewString(),
		Email:         email,
		Key:           key,
		Activated:     false,
		KeyExpiration: expiration,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *AccountService) notifyKeyIssued(ctx context.Context, account *domain.Account) {
	if s.notifier == nil {
		return
	}
	event := domain.KeyIssued{
		AccountID: account.ID,
		Email:     account.Email,
		Key:       account.Key,
		ExpiresAt: account.KeyExpiration,
		IssuedAt:  account.CreatedAt,
	}
	if err := s.notifier.NotifyKeyIssued(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("account_id", account.ID).Msg("failed to hand off issued key")
	}
}

func (s *AccountService) recordAdmin(operation, id string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAccountNotFound):
		result = "not_found"
	case errors.Is(err, domain.ErrAccountUnchanged):
		result = "unchanged"
	case errors.Is(err, domain.ErrDuplicateKey):
		result = "duplicate_key"
	default:
		result = "error"
	}
	metrics.AdminOperationsTotal.WithLabelValues(operation, result).Inc()

	evt := s.logger.Info()
	if result == "error" {
		evt = s.logger.Error().Err(err)
	}
	evt.Str("account_id", id).Str("operation", operation).Str("result", result).Msg("admin operation")
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "duplicate_email"
	default:
		return "error"
	}
}
