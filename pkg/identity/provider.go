// Package identity is a local identity provider: email/password accounts,
// anonymous sessions and signed session tokens.
//
// A Provider holds at most one signed-in user and notifies listeners on every
// change, the way a browser auth SDK reports auth state.
package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aretw0/synote/pkg/core"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ResetSender delivers password reset tokens (by email in a hosted setup).
type ResetSender interface {
	SendReset(ctx context.Context, email, token string) error
}

// ResetSenderFunc adapts a function to ResetSender.
type ResetSenderFunc func(ctx context.Context, email, token string) error

func (f ResetSenderFunc) SendReset(ctx context.Context, email, token string) error {
	return f(ctx, email, token)
}

// Config holds the configuration for a Provider.
type Config struct {
	Accounts    Accounts
	Secret      []byte
	TokenTTL    time.Duration
	ResetTTL    time.Duration
	ResetSender ResetSender
	Clock       func() time.Time
	Logger      *slog.Logger
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

// Provider implements core.Authenticator.
type Provider struct {
	config Config

	mu        sync.Mutex
	user      *core.User
	listeners map[uint64]core.AuthFunc
	nextID    uint64
}

// NewProvider creates a provider with nobody signed in.
func NewProvider(config Config) (*Provider, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("identity secret is required")
	}
	if config.Accounts == nil {
		config.Accounts = NewMemoryAccounts()
	}
	if config.TokenTTL <= 0 {
		config.TokenTTL = 30 * 24 * time.Hour
	}
	if config.ResetTTL <= 0 {
		config.ResetTTL = time.Hour
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Cost == 0 {
		config.Cost = bcrypt.DefaultCost
	}
	return &Provider{config: config, listeners: make(map[uint64]core.AuthFunc)}, nil
}

// OnAuthChange registers fn and calls it right away with the current user.
func (p *Provider) OnAuthChange(fn core.AuthFunc) core.Unsubscribe {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	current := cloneUser(p.user)
	p.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// CurrentUser returns the signed-in user or nil.
func (p *Provider) CurrentUser() *core.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneUser(p.user)
}

func cloneUser(u *core.User) *core.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// setUser swaps the current user and notifies listeners outside the lock.
func (p *Provider) setUser(u *core.User) {
	p.mu.Lock()
	p.user = cloneUser(u)
	listeners := make([]core.AuthFunc, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	if u == nil {
		p.config.Logger.Info("signed out")
	} else {
		p.config.Logger.Info("signed in", "user", u.ID, "anonymous", u.Anonymous)
	}
	for _, fn := range listeners {
		fn(cloneUser(u))
	}
}

// SignUp registers a new account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || len(password) < MinPasswordLength {
		return &core.ValidationError{Field: "password", Message: "Email and a password of at least 6 characters are required."}
	}
	if err := ctx.Err(); err != nil {
		return &core.AuthError{Op: "Sign-up", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.Cost)
	if err != nil {
		return &core.AuthError{Op: "Sign-up", Err: err}
	}
	account := Account{ID: uuid.NewString(), Email: email, PasswordHash: hash, CreatedAt: p.config.Clock().UTC()}
	if err := p.config.Accounts.Insert(account); err != nil {
		return &core.AuthError{Op: "Sign-up", Err: err}
	}

	p.setUser(&core.User{ID: account.ID, Email: account.Email})
	return nil
}

// SignIn checks the credentials and signs the account in.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return &core.ValidationError{Field: "email", Message: "Email and password are required."}
	}
	if err := ctx.Err(); err != nil {
		return &core.AuthError{Op: "Sign-in", Err: err}
	}

	account, ok, err := p.config.Accounts.Lookup(email)
	if err != nil {
		return &core.AuthError{Op: "Sign-in", Err: err}
	}
	if !ok || bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) != nil {
		return &core.AuthError{Op: "Sign-in", Err: ErrInvalidCredentials}
	}

	p.setUser(&core.User{ID: account.ID, Email: account.Email})
	return nil
}

// SignInAnonymously starts a guest identity with a fresh id.
func (p *Provider) SignInAnonymously(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &core.AuthError{Op: "Guest sign-in", Err: err}
	}
	p.setUser(&core.User{ID: uuid.NewString(), Anonymous: true})
	return nil
}

// SignInWithOAuthPopup always fails: there is no browser to host the popup.
func (p *Provider) SignInWithOAuthPopup(ctx context.Context) error {
	return &core.AuthError{Op: "Google sign-in", Err: core.ErrUnsupported}
}

// SignOut clears the current user. Signing out with nobody signed in is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	if p.CurrentUser() == nil {
		return nil
	}
	p.setUser(nil)
	return nil
}

// SendPasswordReset issues a short-lived reset token to the account's owner.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return &core.ValidationError{Field: "email", Message: "Please enter your email address to reset your password."}
	}
	if p.config.ResetSender == nil {
		return &core.AuthError{Op: "Password reset", Err: core.ErrUnsupported}
	}

	account, ok, err := p.config.Accounts.Lookup(email)
	if err != nil {
		return &core.AuthError{Op: "Password reset", Err: err}
	}
	if !ok {
		return &core.AuthError{Op: "Password reset", Err: ErrUnknownEmail}
	}

	token, err := issue(p.config.Secret, core.User{ID: account.ID, Email: account.Email}, purposeReset, p.config.Clock(), p.config.ResetTTL)
	if err != nil {
		return &core.AuthError{Op: "Password reset", Err: err}
	}
	if err := p.config.ResetSender.SendReset(ctx, account.Email, token); err != nil {
		return &core.AuthError{Op: "Password reset", Err: err}
	}
	return nil
}

// ResetPassword sets a new password using a token from SendPasswordReset.
// It does not sign anyone in.
func (p *Provider) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < MinPasswordLength {
		return &core.ValidationError{Field: "password", Message: "Password must be at least 6 characters."}
	}
	u, err := parse(p.config.Secret, token, purposeReset, p.config.Clock())
	if err != nil {
		return &core.AuthError{Op: "Password reset", Err: err}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.Cost)
	if err != nil {
		return &core.AuthError{Op: "Password reset", Err: err}
	}
	if err := p.config.Accounts.SetPassword(u.Email, hash); err != nil {
		return &core.AuthError{Op: "Password reset", Err: err}
	}
	return nil
}

// Token returns a signed session token for the current user, so a later
// process can resume with Restore.
func (p *Provider) Token() (string, error) {
	u := p.CurrentUser()
	if u == nil {
		return "", &core.AuthError{Op: "Token", Err: errors.New("nobody is signed in")}
	}
	token, err := issue(p.config.Secret, *u, purposeSession, p.config.Clock(), p.config.TokenTTL)
	if err != nil {
		return "", &core.AuthError{Op: "Token", Err: err}
	}
	return token, nil
}

// Restore signs in the user named by a session token.
// Accounts must still exist; anonymous identities are restored as-is.
func (p *Provider) Restore(ctx context.Context, token string) error {
	u, err := parse(p.config.Secret, token, purposeSession, p.config.Clock())
	if err != nil {
		return &core.AuthError{Op: "Session restore", Err: err}
	}
	if !u.Anonymous {
		account, ok, err := p.config.Accounts.Lookup(u.Email)
		if err != nil {
			return &core.AuthError{Op: "Session restore", Err: err}
		}
		if !ok || account.ID != u.ID {
			return &core.AuthError{Op: "Session restore", Err: ErrInvalidToken}
		}
	}
	p.setUser(&u)
	return nil
}

var _ core.Authenticator = (*Provider)(nil)
