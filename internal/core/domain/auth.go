package domain

// AuthOutcome tags the result of an activation attempt.
type AuthOutcome int

const (
	AuthActivated AuthOutcome = iota
	AuthInvalidCredentials
	AuthAlreadyActivated
	AuthKeyExpired
)

var authMessages = map[AuthOutcome]string{
	AuthActivated:          "user authenticated and key activated successfully",
	AuthInvalidCredentials: "invalid user or key",
	AuthAlreadyActivated:   "key already activated",
	AuthKeyExpired:         "activation key expired",
}

// String returns a short label suitable for metrics.
func (o AuthOutcome) String() string {
	switch o {
	case AuthActivated:
		return "activated"
	case AuthInvalidCredentials:
		return "invalid_credentials"
	case AuthAlreadyActivated:
		return "already_activated"
	case AuthKeyExpired:
		return "key_expired"
	default:
		return "unknown"
	}
}

// Message is the human-readable status returned to the caller.
func (o AuthOutcome) Message() string {
	if m, ok := authMessages[o]; ok {
		return m
	}
	return "unexpected authentication outcome"
}

// Err maps a failed outcome to its sentinel error. Returns nil for AuthActivated.
func (o AuthOutcome) Err() error {
	switch o {
	case AuthActivated:
		return nil
	case AuthInvalidCredentials:
		return ErrInvalidCredentials
	case AuthAlreadyActivated:
		return ErrAlreadyActivated
	case AuthKeyExpired:
		return ErrKeyExpired
	default:
		return ErrInvalidCredentials
	}
}

// AuthResult is returned by an activation attempt. Account is only set when a
// matching account was found.
type AuthResult struct {
	Outcome AuthOutcome
	Account *Account
}

func (r AuthResult) Success() bool {
	return r.Outcome == AuthActivated
}

func (r AuthResult) Message() string {
	return r.Outcome.Message()
}
