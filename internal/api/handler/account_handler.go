package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/advcontrato/account-service/internal/core/domain"
	"github.com/advcontrato/account-service/internal/core/ports"
)

// AccountHandler handles HTTP requests for the account lifecycle.
type AccountHandler struct {
	service             ports.AccountService
	defaultValidityDays int
}

// NewAccountHandler wires the handler to the service. defaultValidityDays is
// applied when a self-registration omits key_validity_days.
func NewAccountHandler(service ports.AccountService, defaultValidityDays int) *AccountHandler {
	return &AccountHandler{service: service, defaultValidityDays: defaultValidityDays}
}

// Register creates an account with a generated activation key.
//
// @Summary      Register with a generated key
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Email and optional key validity"
// @Success      201   {object}  registrationResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /v1/accounts [post]
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}

	days := req.KeyValidityDays
	if days == 0 {
		days = h.defaultValidityDays
	}

	account, err := h.service.RegisterNewUser(c.Request().Context(), req.Email, days)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, registrationResponse{
		accountResponse: toAccountResponse(account),
		Key:             account.Key,
	})
}

// RegisterWithKey creates an account with an operator-supplied key.
//
// @Summary      Register with a caller-supplied key
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerWithKeyRequest  true  "Email and key"
// @Success      201   {object}  registrationResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/accounts/keys [post]
func (h *AccountHandler) RegisterWithKey(c echo.Context) error {
	var req registerWithKeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}

	account, err := h.service.RegisterUser(c.Request().Context(), req.Email, req.Key)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, registrationResponse{
		accountResponse: toAccountResponse(account),
		Key:             account.Key,
	})
}

// Activate authenticates an email/key pair and activates the account.
//
// @Summary      Activate an account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        body  body      activateRequest  true  "Email and activation key"
// @Success      200   {object}  activationResponse
// @Failure      401   {object}  activationResponse
// @Failure      409   {object}  activationResponse
// @Failure      410   {object}  activationResponse
// @Failure      503   {object}  errorResponse
// @Router       /v1/accounts/activate [post]
func (h *AccountHandler) Activate(c echo.Context) error {
	var req activateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}

	result, err := h.service.AuthenticateUser(c.Request().Context(), req.Email, req.Key)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if !result.Success() {
		status, _ = StatusFor(result.Outcome.Err())
	}
	return c.JSON(status, activationResponse{Success: result.Success(), Message: result.Message()})
}

// List returns every account. Keys are never included.
//
// @Summary      List accounts
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listAccountsResponse
// @Failure      401  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /v1/accounts [get]
func (h *AccountHandler) List(c echo.Context) error {
	accounts, err := h.service.GetAllUsers(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toListResponse(accounts))
}

// Exists reports whether an email is already registered.
//
// @Summary      Check email registration
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        email  query     string  true  "Email address"
// @Success      200    {object}  existsResponse
// @Failure      401    {object}  errorResponse
// @Failure      422    {object}  errorResponse
// @Router       /v1/accounts/exists [get]
func (h *AccountHandler) Exists(c echo.Context) error {
	email := c.QueryParam("email")
	if email == "" {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "email is required"})
	}

	registered, err := h.service.IsEmailRegistered(c.Request().Context(), email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, existsResponse{Email: email, Registered: registered})
}

// ResetKey replaces the key of an account and marks it unactivated.
//
// @Summary      Reset an account key
// @Tags         accounts
// @Accept       json
// @Security     BearerAuth
// @Param        id    path  string           true  "Account ID"
// @Param        body  body  resetKeyRequest  true  "New key"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/accounts/{id}/key [put]
func (h *AccountHandler) ResetKey(c echo.Context) error {
	var req resetKeyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	}

	if err := h.service.ResetUserKey(c.Request().Context(), c.Param("id"), req.Key); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Deactivate clears the activation flag of an account.
//
// @Summary      Deactivate an account
// @Tags         accounts
// @Security     BearerAuth
// @Param        id  path  string  true  "Account ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/accounts/{id}/deactivate [post]
func (h *AccountHandler) Deactivate(c echo.Context) error {
	if err := h.service.DeactivateUser(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes an account.
//
// @Summary      Delete an account
// @Tags         accounts
// @Security     BearerAuth
// @Param        id  path  string  true  "Account ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/accounts/{id} [delete]
func (h *AccountHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StatusFor maps a domain error to its HTTP status. ok is false for errors
// the domain does not know about.
func StatusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail), errors.Is(err, domain.ErrDuplicateKey):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, true
	case errors.Is(err, domain.ErrAlreadyActivated), errors.Is(err, domain.ErrAccountUnchanged):
		return http.StatusConflict, true
	case errors.Is(err, domain.ErrKeyExpired):
		return http.StatusGone, true
	case errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInvalidKeyValidity):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, true
	}
	return 0, false
}

// respondError writes business failures directly. Store and unknown errors
// go to the central error handler so they are logged once.
func respondError(c echo.Context, err error) error {
	status, ok := StatusFor(err)
	if !ok || status == http.StatusServiceUnavailable {
		return err
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}
