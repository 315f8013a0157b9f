// Package identity wraps the external identity service. The backend owns
// the budgeting data; this provider only establishes who the user is and
// hands out the ID token the API client presents as a bearer credential.
package identity

import "context"

// User is the externally-authenticated identity.
type User struct {
	UID         string
	Email       string
	DisplayName string
}

// Provider exposes the identity operations the session layer composes.
// Sign-in operations return the user together with the ID token minted
// for it. Subscribe fires the callback once with the current state
// immediately, then again on every change; the returned func stops
// delivery.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*User, string, error)
	SignIn(ctx context.Context, email, password string) (*User, string, error)
	FederatedSignIn(ctx context.Context) (*User, string, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(*User)) func()
}
