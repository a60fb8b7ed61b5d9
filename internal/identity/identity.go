// Package identity defines the boundary to the authentication provider.
//
// The application never verifies credentials itself — it asks a Provider.
// The session layer treats the provider as opaque: it hands over an email
// and password and gets back either an Identity or an *Error carrying a
// Kind from the fixed taxonomy below. Which provider actually answers
// (the built-in account store, GitHub OAuth) is a wiring decision.
package identity

import "context"

// Identity is what a provider knows about an authenticated account.
// DisplayName and PhotoURL are optional — the session layer has fallback
// rules for both.
type Identity struct {
	DisplayName string
	Email       string
	PhotoURL    string
}

// Kind classifies a provider failure. The session layer maps each kind to
// a user-visible message attached to a specific form field; anything it
// doesn't recognize falls through to KindUnknown and a generic message.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials" // wrong password or no such account (deliberately indistinguishable)
	KindTooManyAttempts    Kind = "too_many_attempts"
	KindEmailInUse         Kind = "email_in_use"
	KindInvalidEmail       Kind = "invalid_email"
	KindUserNotFound       Kind = "user_not_found" // password reset for an unknown email
	KindUnknown            Kind = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf extracts the Kind from an error chain. Any error that isn't an
// *Error — a network failure, a storage failure — classifies as KindUnknown.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

// Listener receives session-change notifications. A non-nil identity means
// someone signed in; nil means the session ended. Providers fire listeners
// for every sign-in/sign-out they perform, including ones not initiated
// through the local session controller.
type Listener func(*Identity)

// Provider is the external authentication service.
//
// All blocking operations take a context so an abandoned HTTP request can
// cancel the underlying work. Subscribe returns an unsubscribe function;
// calling it more than once is harmless.
type Provider interface {
	Register(ctx context.Context, email, password, displayName string) (*Identity, error)
	Login(ctx context.Context, email, password string) (*Identity, error)
	Logout(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	Subscribe(l Listener) (unsubscribe func())
}
