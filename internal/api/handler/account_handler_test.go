package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/advcontrato/account-service/internal/core/domain"
)

type stubAccountService struct {
	account  *domain.Account
	accounts []*domain.Account
	result   domain.AuthResult
	exists   bool
	err      error

	gotEmail string
	gotKey   string
	gotDays  int
	gotID    string
}

func (s *stubAccountService) RegisterUser(_ context.Context, email, key string) (*domain.Account, error) {
	s.gotEmail, s.gotKey = email, key
	return s.account, s.err
}

func (s *stubAccountService) RegisterNewUser(_ context.Context, email string, days int) (*domain.Account, error) {
	s.gotEmail, s.gotDays = email, days
	return s.account, s.err
}

func (s *stubAccountService) AuthenticateUser(_ context.Context, email, key string) (domain.AuthResult, error) {
	s.gotEmail, s.gotKey = email, key
	return s.result, s.err
}

func (s *stubAccountService) GetAllUsers(context.Context) ([]*domain.Account, error) {
	return s.accounts, s.err
}

func (s *stubAccountService) ResetUserKey(_ context.Context, id, key string) error {
	s.gotID, s.gotKey = id, key
	return s.err
}

func (s *stubAccountService) IsEmailRegistered(_ context.Context, email string) (bool, error) {
	s.gotEmail = email
	return s.exists, s.err
}

func (s *stubAccountService) DeactivateUser(_ context.Context, id string) error {
	s.gotID = id
	return s.err
}

func (s *stubAccountService) DeleteUser(_ context.Context, id string) error {
	s.gotID = id
	return s.err
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func sampleAccount() *domain.Account {
	return &domain.Account{
		ID:            "acc-1",
		Email:         "alice@example.com",
		Key:           "secret-key",
		KeyExpiration: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRegister_UsesDefaultValidity(t *testing.T) {
	e := newEcho()
	svc := &stubAccountService{account: sampleAccount()}
	h := NewAccountHandler(svc, 7)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts", `{"email":"alice@example.com"}`), rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.gotDays != 7 {
		t.Fatalf("expected default validity 7, got %d", svc.gotDays)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["key"] != "secret-key" || resp["id"] != "acc-1" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if _, ok := resp["key_expiration"]; !ok {
		t.Fatalf("expected key_expiration in body: %s", rec.Body.String())
	}
}

func TestRegister_ExplicitValidity(t *testing.T) {
	e := newEcho()
	svc := &stubAccountService{account: sampleAccount()}
	h := NewAccountHandler(svc, 7)

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts", `{"email":"alice@example.com","key_validity_days":30}`), rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if svc.gotDays != 30 {
		t.Fatalf("expected validity 30, got %d", svc.gotDays)
	}
}

func TestRegister_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"missing email":   `{}`,
		"malformed email": `{"email":"not-an-email"}`,
		"negative days":   `{"email":"a@example.com","key_validity_days":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEcho()
			h := NewAccountHandler(&stubAccountService{}, 7)
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts", body), rec)

			if err := h.Register(c); err != nil {
				t.Fatalf("Register returned error: %v", err)
			}
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegister_BadPayload(t *testing.T) {
	e := newEcho()
	h := NewAccountHandler(&stubAccountService{}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts", `{"email":`), rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEcho()
	h := NewAccountHandler(&stubAccountService{err: domain.ErrDuplicateEmail}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts", `{"email":"alice@example.com"}`), rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestRegister_StoreFailureIsPropagated(t *testing.T) {
	e := newEcho()
	storeErr := fmt.Errorf("insert account: %w: %w", domain.ErrStoreUnavailable, errors.New("timeout"))
	h := NewAccountHandler(&stubAccountService{err: storeErr}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts", `{"email":"alice@example.com"}`), rec)

	err := h.Register(c)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store error to be returned, got %v", err)
	}
}

func TestRegisterWithKey(t *testing.T) {
	e := newEcho()
	acc := sampleAccount()
	acc.KeyExpiration = time.Time{}
	svc := &stubAccountService{account: acc}
	h := NewAccountHandler(svc, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts/keys", `{"email":"alice@example.com","key":"secret-key"}`), rec)

	if err := h.RegisterWithKey(c); err != nil {
		t.Fatalf("RegisterWithKey returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.gotKey != "secret-key" {
		t.Fatalf("key not forwarded: %q", svc.gotKey)
	}
	if strings.Contains(rec.Body.String(), "key_expiration") {
		t.Fatalf("expected no key_expiration for caller-supplied key: %s", rec.Body.String())
	}
}

func TestRegisterWithKey_DuplicateKey(t *testing.T) {
	e := newEcho()
	h := NewAccountHandler(&stubAccountService{err: domain.ErrDuplicateKey}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts/keys", `{"email":"alice@example.com","key":"k"}`), rec)

	if err := h.RegisterWithKey(c); err != nil {
		t.Fatalf("RegisterWithKey returned error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestActivate_Outcomes(t *testing.T) {
	cases := []struct {
		outcome domain.AuthOutcome
		status  int
		success bool
	}{
		{domain.AuthActivated, http.StatusOK, true},
		{domain.AuthInvalidCredentials, http.StatusUnauthorized, false},
		{domain.AuthAlreadyActivated, http.StatusConflict, false},
		{domain.AuthKeyExpired, http.StatusGone, false},
	}
	for _, tc := range cases {
		t.Run(tc.outcome.String(), func(t *testing.T) {
			e := newEcho()
			h := NewAccountHandler(&stubAccountService{result: domain.AuthResult{Outcome: tc.outcome}}, 7)
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts/activate", `{"email":"a@example.com","key":"k"}`), rec)

			if err := h.Activate(c); err != nil {
				t.Fatalf("Activate returned error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}

			var resp activationResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success != tc.success || resp.Message != tc.outcome.Message() {
				t.Fatalf("unexpected body: %+v", resp)
			}
		})
	}
}

func TestActivate_MissingKey(t *testing.T) {
	e := newEcho()
	h := NewAccountHandler(&stubAccountService{}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/v1/accounts/activate", `{"email":"a@example.com"}`), rec)

	if err := h.Activate(c); err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "key is required") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestList_OmitsKeys(t *testing.T) {
	e := newEcho()
	second := sampleAccount()
	second.ID, second.Email, second.Key, second.Activated = "acc-2", "bob@example.com", "other-key", true
	h := NewAccountHandler(&stubAccountService{accounts: []*domain.Account{sampleAccount(), second}}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/accounts", nil), rec)

	if err := h.List(c); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-key") || strings.Contains(rec.Body.String(), "other-key") {
		t.Fatalf("keys leaked in listing: %s", rec.Body.String())
	}

	var resp listAccountsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || resp.Data[1].Email != "bob@example.com" || !resp.Data[1].Activated {
		t.Fatalf("unexpected listing: %+v", resp)
	}
}

func TestList_Empty(t *testing.T) {
	e := newEcho()
	h := NewAccountHandler(&stubAccountService{}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/accounts", nil), rec)

	if err := h.List(c); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Fatalf("expected empty data array, got %s", rec.Body.String())
	}
}

func TestExists(t *testing.T) {
	e := newEcho()
	svc := &stubAccountService{exists: true}
	h := NewAccountHandler(svc, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/accounts/exists?email=alice@example.com", nil), rec)

	if err := h.Exists(c); err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	var resp existsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Registered || resp.Email != "alice@example.com" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestExists_MissingEmail(t *testing.T) {
	e := newEcho()
	h := NewAccountHandler(&stubAccountService{}, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/accounts/exists", nil), rec)

	if err := h.Exists(c); err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestAdminOperations(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusNoContent},
		{"not found", domain.ErrAccountNotFound, http.StatusNotFound},
		{"unchanged", domain.ErrAccountUnchanged, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run("reset key "+tc.name, func(t *testing.T) {
			e := newEcho()
			svc := &stubAccountService{err: tc.err}
			h := NewAccountHandler(svc, 7)
			rec := httptest.NewRecorder()
			c := e.NewContext(jsonRequest(http.MethodPut, "/v1/accounts/acc-1/key", `{"key":"fresh"}`), rec)
			c.SetParamNames("id")
			c.SetParamValues("acc-1")

			if err := h.ResetKey(c); err != nil {
				t.Fatalf("ResetKey returned error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if svc.gotID != "acc-1" || svc.gotKey != "fresh" {
				t.Fatalf("unexpected forwarding: id=%q key=%q", svc.gotID, svc.gotKey)
			}
		})

		t.Run("deactivate "+tc.name, func(t *testing.T) {
			e := newEcho()
			svc := &stubAccountService{err: tc.err}
			h := NewAccountHandler(svc, 7)
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/v1/accounts/acc-1/deactivate", nil), rec)
			c.SetParamNames("id")
			c.SetParamValues("acc-1")

			if err := h.Deactivate(c); err != nil {
				t.Fatalf("Deactivate returned error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	e := newEcho()
	svc := &stubAccountService{}
	h := NewAccountHandler(svc, 7)
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/v1/accounts/acc-1", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("acc-1")

	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if rec.Code != http.StatusNoContent || svc.gotID != "acc-1" {
		t.Fatalf("unexpected result: code=%d id=%q", rec.Code, svc.gotID)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrDuplicateEmail:     http.StatusConflict,
		domain.ErrDuplicateKey:       http.StatusConflict,
		domain.ErrInvalidCredentials: http.StatusUnauthorized,
		domain.ErrAlreadyActivated:   http.StatusConflict,
		domain.ErrKeyExpired:         http.StatusGone,
		domain.ErrAccountNotFound:    http.StatusNotFound,
		domain.ErrAccountUnchanged:   http.StatusConflict,
		domain.ErrInvalidKeyValidity: http.StatusUnprocessableEntity,
		domain.ErrStoreUnavailable:   http.StatusServiceUnavailable,
	}
	for err, want := range cases {
		got, ok := StatusFor(err)
		if !ok || got != want {
			t.Fatalf("StatusFor(%v) = %d, %v; want %d", err, got, ok, want)
		}
	}
	wrapped := fmt.Errorf("find account: %w: %w", domain.ErrStoreUnavailable, errors.New("timeout"))
	if got, _ := StatusFor(wrapped); got != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped store error to map to 503, got %d", got)
	}
	if _, ok := StatusFor(errors.New("unknown")); ok {
		t.Fatalf("expected unknown error to be unmapped")
	}
}
