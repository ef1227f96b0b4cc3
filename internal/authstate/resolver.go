package authstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/renangcr/devProperties/internal/domain"
)

// Subscriber is the identity provider's auth-state stream for one instance.
// fn must be invoked serially, in emission order; the first call reports the
// restored session (or nil). The returned unsubscribe func must be idempotent.
type Subscriber interface {
	Subscribe(ctx context.Context, fn func(*domain.AuthUser)) (unsubscribe func(), err error)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, fn func(*domain.AuthUser)) (func(), error)

func (f SubscriberFunc) Subscribe(ctx context.Context, fn func(*domain.AuthUser)) (func(), error) {
	return f(ctx, fn)
}

// Outcome classifies an applied notification.
type Outcome string

const (
	OutcomeSignedIn  Outcome = "signed_in"
	OutcomeSignedOut Outcome = "signed_out"
	OutcomeMalformed Outcome = "malformed"
)

type ResolverOption func(*Resolver)

// WithOutcomeObserver is called after each applied notification.
func WithOutcomeObserver(fn func(Outcome)) ResolverOption {
	return func(r *Resolver) { r.observe = fn }
}

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// Resolver feeds a provider's auth-state notifications into a Store.
type Resolver struct {
	store   *Store
	observe func(Outcome)
	logger  *slog.Logger

	// mu serialises notification handling with Close so nothing is applied
	// once Close has returned.
	mu          sync.Mutex
	closed      bool
	unsubscribe func()
	closeOnce   sync.Once
}

// NewResolver subscribes store to sub. A subscription error is returned as is;
// there is no degraded mode without knowing the session.
func NewResolver(ctx context.Context, sub Subscriber, store *Store, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		store:   store,
		observe: func(Outcome) {},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	unsubscribe, err := sub.Subscribe(ctx, r.apply)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to auth state: %w", err)
	}

	// Notifications may already be arriving; Close reads unsubscribe under mu.
	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()

	return r, nil
}

func (r *Resolver) apply(user *domain.AuthUser) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	var outcome Outcome
	switch {
	case user == nil:
		outcome = OutcomeSignedOut
		r.store.Replace(nil)
	case user.UID == "":
		outcome = OutcomeMalformed
		r.store.Replace(nil)
	default:
		outcome = OutcomeSignedIn
		r.store.Replace(&Session{
			Identity:    user.UID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		})
	}
	r.mu.Unlock()

	if outcome == OutcomeMalformed {
		r.logger.Warn("Auth notification without user ID, treating as signed out")
	}
	r.observe(outcome)
}

// Close cancels the subscription. Calling it again is a no-op.
func (r *Resolver) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		unsubscribe := r.unsubscribe
		r.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
	})
}
