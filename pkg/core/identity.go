package core

import "context"

// User is the identity a session is scoped to.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"isAnonymous"`
}

// AuthFunc is notified with the signed-in user, or nil after sign-out.
type AuthFunc func(user *User)

// Authenticator is the identity provider capability.
// Every call either resolves or fails with a human-readable *AuthError or
// *ValidationError.
type Authenticator interface {
	OnAuthChange(fn AuthFunc) Unsubscribe
	CurrentUser() *User
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignInAnonymously(ctx context.Context) error
	SignInWithOAuthPopup(ctx context.Context) error
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
}

// Codec compresses note content for storage.
// Decompress must fail with an error (never panic) on corrupt input.
type Codec interface {
	Compress(text string) (string, error)
	Decompress(payload string) (string, error)
}
