package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/advcontrato/account-service/internal/api/handler"
	"github.com/advcontrato/account-service/internal/core/domain"
)

const testSecret = "test-secret"

type fakeAccounts struct {
	listErr error
}

func (f *fakeAccounts) RegisterUser(_ context.Context, email, key string) (*domain.Account, error) {
	return &domain.Account{ID: "acc-2", Email: email, Key: key}, nil
}

func (f *fakeAccounts) RegisterNewUser(_ context.Context, email string, days int) (*domain.Account, error) {
	return &domain.Account{
		ID:            "acc-1",
		Email:         email,
		Key:           "generated",
		KeyExpiration: time.Now().AddDate(0, 0, days),
	}, nil
}

func (f *fakeAccounts) AuthenticateUser(context.Context, string, string) (domain.AuthResult, error) {
	return domain.AuthResult{Outcome: domain.AuthActivated}, nil
}

func (f *fakeAccounts) GetAllUsers(context.Context) ([]*domain.Account, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []*domain.Account{{ID: "acc-1", Email: "a@example.com"}}, nil
}

func (f *fakeAccounts) ResetUserKey(context.Context, string, string) error { return nil }

func (f *fakeAccounts) IsEmailRegistered(context.Context, string) (bool, error) { return false, nil }

func (f *fakeAccounts) DeactivateUser(context.Context, string) error { return nil }

func (f *fakeAccounts) DeleteUser(context.Context, string) error { return domain.ErrAccountNotFound }

func newTestRouter(accounts *fakeAccounts) http.Handler {
	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		Accounts: accounts,
		Checks: map[string]handler.DependencyCheck{
			"mongodb": func(context.Context) error { return nil },
		},
		AdminJWTSecret:         testSecret,
		DefaultKeyValidityDays: 7,
		Logger:                 zerolog.Nop(),
		Registerer:             reg,
		Gatherer:               reg,
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func do(t *testing.T, h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	h := newTestRouter(&fakeAccounts{})

	if rec := do(t, h, http.MethodPost, "/v1/accounts", `{"email":"a@example.com"}`, ""); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/v1/accounts/activate", `{"email":"a@example.com","key":"k"}`, ""); rec.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200, got %d", rec.Code)
	}
}

func TestRouter_AdminRoutesRequireToken(t *testing.T) {
	h := newTestRouter(&fakeAccounts{})

	routes := []struct{ method, target, body string }{
		{http.MethodPost, "/v1/accounts/keys", `{"email":"a@example.com","key":"k"}`},
		{http.MethodGet, "/v1/accounts", ""},
		{http.MethodGet, "/v1/accounts/exists?email=a@example.com", ""},
		{http.MethodPut, "/v1/accounts/acc-1/key", `{"key":"k"}`},
		{http.MethodPost, "/v1/accounts/acc-1/deactivate", ""},
		{http.MethodDelete, "/v1/accounts/acc-1", ""},
	}
	for _, r := range routes {
		if rec := do(t, h, r.method, r.target, r.body, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: expected 401, got %d", r.method, r.target, rec.Code)
		}
	}

	token := adminToken(t)
	if rec := do(t, h, http.MethodGet, "/v1/accounts", "", token); rec.Code != http.StatusOK {
		t.Fatalf("list with token: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodPost, "/v1/accounts/keys", `{"email":"a@example.com","key":"k"}`, token); rec.Code != http.StatusCreated {
		t.Fatalf("register with key: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodDelete, "/v1/accounts/acc-9", "", token); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", rec.Code)
	}
}

func TestRouter_StoreFailureMapsTo503(t *testing.T) {
	storeErr := fmt.Errorf("list accounts: %w: %w", domain.ErrStoreUnavailable, errors.New("no reachable servers"))
	h := newTestRouter(&fakeAccounts{listErr: storeErr})

	rec := do(t, h, http.MethodGet, "/v1/accounts", "", adminToken(t))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "no reachable servers") {
		t.Fatalf("store error leaked: %s", rec.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	h := newTestRouter(&fakeAccounts{})
	do(t, h, http.MethodPost, "/v1/accounts", `{"email":"a@example.com"}`, "")

	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), metricsSubsystem) {
		t.Fatalf("expected http metrics in scrape output")
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newTestRouter(&fakeAccounts{})
	if rec := do(t, h, http.MethodGet, "/nope", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
