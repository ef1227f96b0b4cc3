package authstate

import (
	"context"
	"errors"
	"testing"

	"github.com/renangcr/devProperties/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, opts ...ResolverOption) (*fakeProvider, *Store, *Resolver) {
	t.Helper()
	provider := &fakeProvider{}
	store := NewStore()
	r, err := NewResolver(context.Background(), provider, store, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return provider, store, r
}

func TestResolver_SignedInNotification(t *testing.T) {
	provider, store, _ := newTestResolver(t)

	provider.emit(ana())

	st := store.Read()
	require.NotNil(t, st.Session)
	assert.Equal(t, Session{Identity: "u1", DisplayName: "Ana", Email: "ana@x.com"}, *st.Session)
	assert.False(t, st.Resolving)
}

func TestResolver_SignedOutNotification(t *testing.T) {
	provider, store, _ := newTestResolver(t)

	provider.emit(nil)

	st := store.Read()
	assert.Nil(t, st.Session)
	assert.False(t, st.Resolving)
}

func TestResolver_MissingOptionalFieldsAreValid(t *testing.T) {
	provider, store, _ := newTestResolver(t)

	provider.emit(&domain.AuthUser{UID: "u9"})

	require.NotNil(t, store.Read().Session)
	assert.Equal(t, Session{Identity: "u9"}, *store.Read().Session)
}

func TestResolver_MissingIdentifierMeansNoSession(t *testing.T) {
	var outcomes []Outcome
	provider, store, _ := newTestResolver(t, WithOutcomeObserver(func(o Outcome) { outcomes = append(outcomes, o) }))

	provider.emit(ana())
	provider.emit(&domain.AuthUser{DisplayName: "Ghost", Email: "ghost@x.com"})

	assert.Nil(t, store.Read().Session)
	assert.False(t, store.Read().Resolving)
	assert.Equal(t, []Outcome{OutcomeSignedIn, OutcomeMalformed}, outcomes)
}

func TestResolver_AppliesEachNotificationInOrder(t *testing.T) {
	provider, store, _ := newTestResolver(t)

	sequence := []*domain.AuthUser{
		ana(),
		nil,
		{UID: "u2", Email: "b@x.com"},
		{UID: "u2", DisplayName: "Bia"},
		nil,
		{UID: "u3"},
	}

	for _, n := range sequence {
		provider.emit(n)

		st := store.Read()
		assert.False(t, st.Resolving)
		if n == nil {
			assert.Nil(t, st.Session)
			continue
		}
		require.NotNil(t, st.Session)
		assert.Equal(t, Session{Identity: n.UID, DisplayName: n.DisplayName, Email: n.Email}, *st.Session)
	}
}

func TestResolver_SubscribeFailurePropagates(t *testing.T) {
	provider := &fakeProvider{subscribeErr: errors.New("provider unreachable")}

	r, err := NewResolver(context.Background(), provider, NewStore())

	assert.Nil(t, r)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.subscribeErr)
}

func TestResolver_CloseTwiceIsNoopAndStopsApplying(t *testing.T) {
	provider, store, r := newTestResolver(t)
	provider.emit(ana())

	r.Close()
	assert.NotPanics(t, r.Close)

	provider.emit(nil)
	provider.emit(&domain.AuthUser{UID: "intruder"})

	require.NotNil(t, store.Read().Session)
	assert.Equal(t, "u1", store.Read().Session.Identity)

	_, unsubscribes := provider.counts()
	assert.Equal(t, 1, unsubscribes)
}

func TestResolver_InitialNotificationDuringSubscribe(t *testing.T) {
	provider := &fakeProvider{onSubscribe: func(fn func(*domain.AuthUser)) { fn(ana()) }}
	store := NewStore()

	r, err := NewResolver(context.Background(), provider, store)
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, store.Read().Resolving)
	assert.Equal(t, "u1", store.Read().Session.Identity)
}

func TestResolver_ObserverSeesOutcomes(t *testing.T) {
	var outcomes []Outcome
	provider, _, _ := newTestResolver(t, WithOutcomeObserver(func(o Outcome) { outcomes = append(outcomes, o) }))

	provider.emit(nil)
	provider.emit(ana())

	assert.Equal(t, []Outcome{OutcomeSignedOut, OutcomeSignedIn}, outcomes)
}

func TestSubscriberFunc(t *testing.T) {
	called := false
	sub := SubscriberFunc(func(_ context.Context, fn func(*domain.AuthUser)) (func(), error) {
		called = true
		fn(nil)
		return func() {}, nil
	})

	store := NewStore()
	r, err := NewResolver(context.Background(), sub, store)
	require.NoError(t, err)
	r.Close()

	assert.True(t, called)
	assert.False(t, store.Read().Resolving)
}
