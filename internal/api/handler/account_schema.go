package handler

import (
	"time"

	"github.com/advcontrato/account-service/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request types ---

type registerRequest struct {
	Email string `json:"email" validate:"required,email"`
	// KeyValidityDays falls back to the service default when omitted.
	KeyValidityDays int `json:"key_validity_days" validate:"omitempty,min=1,max=3650"`
}

type registerWithKeyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Key   string `json:"key"   validate:"required"`
}

type activateRequest struct {
	Email string `json:"email" validate:"required"`
	Key   string `json:"key"   validate:"required"`
}

type resetKeyRequest struct {
	Key string `json:"key" validate:"required"`
}

// --- Response types ---
// Kept apart from domain.Account so the JSON contract does not leak keys.

type accountResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Activated     bool       `json:"activated"`
	KeyExpiration *time.Time `json:"key_expiration,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type registrationResponse struct {
	accountResponse
	Key string `json:"key"`
}

type activationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type existsResponse struct {
	Email      string `json:"email"`
	Registered bool   `json:"registered"`
}

type listAccountsResponse struct {
	Data  []accountResponse `json:"data"`
	Total int               `json:"total"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	resp := accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Activated: a.Activated,
		CreatedAt: a.CreatedAt.UTC(),
	}
	if !a.KeyExpiration.IsZero() {
		exp := a.KeyExpiration.UTC()
		resp.KeyExpiration = &exp
	}
	return resp
}

func toListResponse(accounts []*domain.Account) listAccountsResponse {
	items := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		items[i] = toAccountResponse(a)
	}
	return listAccountsResponse{Data: items, Total: len(items)}
}
