package platform_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aretw0/synote/internal/platform"
	"github.com/aretw0/synote/pkg/adapters/docstore"
	"github.com/aretw0/synote/pkg/adapters/local"
	"github.com/aretw0/synote/pkg/core"
	"github.com/aretw0/synote/pkg/identity"
	"github.com/aretw0/synote/pkg/session"
)

const wait = 2 * time.Second

func newProvider(t *testing.T) *identity.Provider {
	t.Helper()
	p, err := identity.NewProvider(identity.Config{
		Secret: []byte("test-secret"),
		Cost:   bcrypt.MinCost,
	})
	require.NoError(t, err)
	return p
}

func newClient(t *testing.T, opts ...platform.Option) *platform.Client {
	t.Helper()
	base := []platform.Option{
		platform.WithDebounce(20 * time.Millisecond),
		platform.WithConfirmWindow(time.Second),
		platform.WithEventBuffer(1000),
	}
	c, err := platform.New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func ready(t *testing.T, c *platform.Client) *session.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	s, err := c.Ready(ctx)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresAuthenticator(t *testing.T) {
	_, err := platform.New(context.Background())
	assert.Error(t, err)
}

func TestClient_SignedOutHasNoSession(t *testing.T) {
	c := newClient(t, platform.WithAuthenticator(newProvider(t)))
	assert.Nil(t, c.Session())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Ready(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_NotesSurviveSignOutAndSignIn(t *testing.T) {
	ctx := context.Background()
	auth := newProvider(t)
	c := newClient(t, platform.WithAuthenticator(auth), platform.WithStore(docstore.NewMemory()))

	require.NoError(t, c.SignUp(ctx, "ada@example.com", "secret1"))
	s := ready(t, c)
	assert.False(t, s.Guest())

	id, err := s.NewNote(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Rename(ctx, id, "Plan"))
	require.Eventually(t, func() bool {
		n, ok := s.Active()
		return ok && n.ID == id && s.Loaded()
	}, wait, 5*time.Millisecond)
	_, err = s.EditContent("remember the milk")
	require.NoError(t, err)

	// Sign-out needs a second click; closing the session flushes the edit.
	decision, err := c.SignOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Awaiting, decision)
	assert.NotNil(t, c.Session())

	decision, err = c.SignOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Confirmed, decision)
	assert.Nil(t, c.Session())

	require.NoError(t, c.SignIn(ctx, "ada@example.com", "secret1"))
	s = ready(t, c)
	require.Len(t, s.Notes(), 1)
	assert.Equal(t, "Plan", s.Notes()[0].Title)
	content, ok := s.Content(id)
	require.True(t, ok)
	assert.Equal(t, "remember the milk", content)
}

func TestClient_GuestUsesLocalStorage(t *testing.T) {
	ctx := context.Background()
	storage := local.NewMemoryStorage()
	c := newClient(t, platform.WithAuthenticator(newProvider(t)), platform.WithGuestStorage(storage))

	require.NoError(t, c.SignInAnonymously(ctx))
	s := ready(t, c)
	assert.True(t, s.Guest())

	_, err := s.NewNote(ctx)
	require.NoError(t, err)

	blob, ok, err := storage.GetItem(local.DefaultNamespace)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, blob, core.DefaultTitle)
}

func TestClient_MissingStoreIsReported(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, platform.WithAuthenticator(newProvider(t)))

	require.NoError(t, c.SignUp(ctx, "bob@example.com", "secret1"))
	assert.Nil(t, c.Session())

	assert.Eventually(t, func() bool {
		for {
			select {
			case e := <-c.Events():
				if e.Type == core.EventNotice && e.Message == platform.ErrNoStore.Error() {
					return true
				}
			default:
				return false
			}
		}
	}, wait, 5*time.Millisecond)
}

func TestClient_AuthErrorsBecomeNotices(t *testing.T) {
	c := newClient(t, platform.WithAuthenticator(newProvider(t)))

	err := c.SignIn(context.Background(), "", "")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	select {
	case e := <-c.Events():
		assert.Equal(t, core.EventNotice, e.Type)
		assert.Equal(t, core.NoticeError, e.Level)
	case <-time.After(wait):
		t.Fatal("no notice emitted")
	}
}

func TestClient_RestoredUserOpensSessionOnNew(t *testing.T) {
	ctx := context.Background()
	auth := newProvider(t)
	require.NoError(t, auth.SignInAnonymously(ctx))

	c := newClient(t, platform.WithAuthenticator(auth))
	require.NotNil(t, c.Session())
	ready(t, c)

	st, ok := c.State().(platform.ClientState)
	require.True(t, ok)
	assert.True(t, st.SignedIn)
	assert.Equal(t, 1, st.SignIns)
	require.NotNil(t, st.Session)
	assert.True(t, st.Session.Guest)
	assert.Equal(t, "client", c.ComponentType())
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	auth := newProvider(t)
	require.NoError(t, auth.SignInAnonymously(context.Background()))
	c := newClient(t, platform.WithAuthenticator(auth))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Nil(t, c.Session())

	_, err := c.Ready(context.Background())
	assert.ErrorIs(t, err, core.ErrClosed)
}
