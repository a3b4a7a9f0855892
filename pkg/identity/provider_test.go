package identity_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aretw0/synote/pkg/core"
	"github.com/aretw0/synote/pkg/identity"
)

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *mailbox) SendReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

func newProvider(t *testing.T, accounts identity.Accounts) (*identity.Provider, *mailbox) {
	t.Helper()
	box := &mailbox{tokens: map[string]string{}}
	p, err := identity.NewProvider(identity.Config{
		Accounts:    accounts,
		Secret:      []byte("test-secret"),
		ResetSender: box,
		Cost:        bcrypt.MinCost,
	})
	require.NoError(t, err)
	return p, box
}

func TestProvider_RequiresSecret(t *testing.T) {
	_, err := identity.NewProvider(identity.Config{})
	assert.Error(t, err)
}

func TestProvider_SignUpSignInSignOut(t *testing.T) {
	p, _ := newProvider(t, nil)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen []*core.User
	)
	unsub := p.OnAuthChange(func(u *core.User) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, u)
	})
	defer unsub()

	require.NoError(t, p.SignUp(ctx, "Ada@Example.com", "secret1"))
	u := p.CurrentUser()
	require.NotNil(t, u)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.Anonymous)

	require.NoError(t, p.SignOut(ctx))
	assert.Nil(t, p.CurrentUser())

	require.NoError(t, p.SignIn(ctx, "ada@example.com", "secret1"))
	assert.Equal(t, u.ID, p.CurrentUser().ID)

	mu.Lock()
	defer mu.Unlock()
	// Immediate call with nil, then sign-up, sign-out, sign-in.
	require.Len(t, seen, 4)
	assert.Nil(t, seen[0])
	assert.NotNil(t, seen[1])
	assert.Nil(t, seen[2])
	assert.NotNil(t, seen[3])
}

func TestProvider_Validation(t *testing.T) {
	p, _ := newProvider(t, nil)
	ctx := context.Background()
	var v *core.ValidationError

	assert.ErrorAs(t, p.SignUp(ctx, "a@b.c", "12345"), &v)
	assert.ErrorAs(t, p.SignUp(ctx, "", "123456"), &v)
	assert.ErrorAs(t, p.SignIn(ctx, "a@b.c", ""), &v)
	assert.ErrorAs(t, p.SendPasswordReset(ctx, "  "), &v)
	assert.Nil(t, p.CurrentUser())
}

func TestProvider_AuthErrors(t *testing.T) {
	p, _ := newProvider(t, nil)
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, "a@b.c", "123456"))
	require.NoError(t, p.SignOut(ctx))

	var authErr *core.AuthError
	err := p.SignIn(ctx, "a@b.c", "wrong-password")
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	assert.Equal(t, "Sign-in failed: invalid email or password", err.Error())

	err = p.SignUp(ctx, "A@B.C", "123456")
	assert.ErrorIs(t, err, identity.ErrEmailInUse)

	err = p.SignInWithOAuthPopup(ctx)
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestProvider_Anonymous(t *testing.T) {
	p, _ := newProvider(t, nil)
	require.NoError(t, p.SignInAnonymously(context.Background()))
	u := p.CurrentUser()
	require.NotNil(t, u)
	assert.True(t, u.Anonymous)
	assert.NotEmpty(t, u.ID)
}

func TestProvider_PasswordReset(t *testing.T) {
	p, box := newProvider(t, nil)
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, "a@b.c", "old-password"))
	require.NoError(t, p.SignOut(ctx))

	assert.ErrorIs(t, p.SendPasswordReset(ctx, "nobody@b.c"), identity.ErrUnknownEmail)
	require.NoError(t, p.SendPasswordReset(ctx, "a@b.c"))
	token := box.tokens["a@b.c"]
	require.NotEmpty(t, token)

	require.NoError(t, p.ResetPassword(ctx, token, "new-password"))
	assert.Nil(t, p.CurrentUser(), "reset does not sign in")

	assert.Error(t, p.SignIn(ctx, "a@b.c", "old-password"))
	assert.NoError(t, p.SignIn(ctx, "a@b.c", "new-password"))

	// A session token is not accepted as a reset token.
	session, err := p.Token()
	require.NoError(t, err)
	assert.ErrorIs(t, p.ResetPassword(ctx, session, "another1"), identity.ErrInvalidToken)
}

func TestProvider_ResetWithoutSender(t *testing.T) {
	p, err := identity.NewProvider(identity.Config{Secret: []byte("s"), Cost: bcrypt.MinCost})
	require.NoError(t, err)
	assert.ErrorIs(t, p.SendPasswordReset(context.Background(), "a@b.c"), core.ErrUnsupported)
}

func TestProvider_TokenRestore(t *testing.T) {
	accounts := identity.NewMemoryAccounts()
	p, _ := newProvider(t, accounts)
	ctx := context.Background()
	require.NoError(t, p.SignUp(ctx, "a@b.c", "123456"))
	token, err := p.Token()
	require.NoError(t, err)
	id := p.CurrentUser().ID

	// A second process with the same secret and accounts resumes the session.
	other, _ := newProvider(t, accounts)
	require.NoError(t, other.Restore(ctx, token))
	assert.Equal(t, id, other.CurrentUser().ID)

	// Tampered tokens are rejected.
	assert.ErrorIs(t, other.Restore(ctx, token+"x"), identity.ErrInvalidToken)
}

func TestProvider_TokenExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	p, err := identity.NewProvider(identity.Config{Secret: []byte("s"), Clock: clock, TokenTTL: time.Hour, Cost: bcrypt.MinCost})
	require.NoError(t, err)
	require.NoError(t, p.SignInAnonymously(context.Background()))
	token, err := p.Token()
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	err = p.Restore(context.Background(), token)
	var authErr *core.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, errors.Is(err, identity.ErrInvalidToken))
}

func TestBoltAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.db")
	accounts, err := identity.OpenBoltAccounts(path)
	require.NoError(t, err)

	require.NoError(t, accounts.Insert(identity.Account{ID: "1", Email: "a@b.c", PasswordHash: []byte("h")}))
	assert.ErrorIs(t, accounts.Insert(identity.Account{ID: "2", Email: "A@B.C"}), identity.ErrEmailInUse)
	require.NoError(t, accounts.SetPassword("a@b.c", []byte("h2")))
	assert.ErrorIs(t, accounts.SetPassword("x@y.z", nil), identity.ErrUnknownEmail)
	require.NoError(t, accounts.Close())

	accounts, err = identity.OpenBoltAccounts(path)
	require.NoError(t, err)
	defer accounts.Close()
	a, ok, err := accounts.Lookup("a@b.c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", a.ID)
	assert.Equal(t, []byte("h2"), a.PasswordHash)
}
