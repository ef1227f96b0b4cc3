package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []*domain.AuthUser
}

func (r *recorder) fn(u *domain.AuthUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, u)
}

func (r *recorder) snapshot() []*domain.AuthUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.AuthUser(nil), r.calls...)
}

func TestOnAuthStateChanged_RestoresThenFollowsChanges(t *testing.T) {
	svc, _, states := newTestService()
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, "c1", "a@x.com", "secret123")
	require.NoError(t, err)

	rec := &recorder{}
	unsubscribe, err := svc.OnAuthStateChanged(ctx, "c1", rec.fn)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, user, rec.snapshot()[0])

	require.NoError(t, svc.SignOut(ctx, "c1"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, time.Millisecond)
	assert.Nil(t, rec.snapshot()[1])

	assert.Len(t, states.publishedTo("c1"), 2)
}

func TestOnAuthStateChanged_SignedOutClientGetsNil(t *testing.T) {
	svc, _, _ := newTestService()

	rec := &recorder{}
	unsubscribe, err := svc.OnAuthStateChanged(context.Background(), "fresh", rec.fn)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, time.Millisecond)
	assert.Nil(t, rec.snapshot()[0])
}

func TestOnAuthStateChanged_UnsubscribeIsIdempotent(t *testing.T) {
	svc, _, states := newTestService()

	rec := &recorder{}
	unsubscribe, err := svc.OnAuthStateChanged(context.Background(), "c1", rec.fn)
	require.NoError(t, err)

	unsubscribe()
	assert.NotPanics(t, unsubscribe)

	states.mu.Lock()
	sub := states.subs["c1"][0]
	states.mu.Unlock()
	assert.True(t, sub.isClosed())
}

func TestOnAuthStateChanged_SubscribeError(t *testing.T) {
	svc, _, states := newTestService()
	states.subscribeErr = errors.New("redis down")

	_, err := svc.OnAuthStateChanged(context.Background(), "c1", func(*domain.AuthUser) {})
	assert.ErrorIs(t, err, states.subscribeErr)
}

func TestOnAuthStateChanged_BindingErrorClosesSubscription(t *testing.T) {
	svc, _, states := newTestService()
	states.bindingErr = errors.New("timeout")

	_, err := svc.OnAuthStateChanged(context.Background(), "c1", func(*domain.AuthUser) {})
	require.ErrorIs(t, err, states.bindingErr)

	states.mu.Lock()
	sub := states.subs["c1"][0]
	states.mu.Unlock()
	assert.True(t, sub.isClosed())
}

// End to end: registration as seen by the client's session store.
func TestClientStream_DrivesSessionStore(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	store := authstate.NewStore()
	resolver, err := authstate.NewResolver(ctx, svc.ForClient("c1"), store)
	require.NoError(t, err)
	defer resolver.Close()

	st, err := store.WaitResolved(ctx)
	require.NoError(t, err)
	assert.False(t, st.Signed())

	user, err := svc.CreateAccount(ctx, "c1", "jane@x.com", "secret123")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	st, err = store.WaitFor(waitCtx, func(st authstate.State) bool { return st.Signed() })
	require.NoError(t, err)
	assert.Equal(t, user.UID, st.Session.Identity)
	assert.Empty(t, st.Session.DisplayName)

	require.NoError(t, svc.UpdateProfile(ctx, "c1", user.UID, "Jane"))
	name := "Jane"
	store.UpdateLocal(authstate.Profile{DisplayName: &name})
	assert.Equal(t, "Jane", store.Read().Session.DisplayName)
	assert.Equal(t, "jane@x.com", store.Read().Session.Email)
}
