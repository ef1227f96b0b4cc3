package domain

import (
	"context"
	"time"
)

// AuthUser is the user record the identity provider attaches to a client.
// It is the wire payload of auth-state notifications.
type AuthUser struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// AuthStateRepository persists which user a browser client is signed in as
// and fans out changes to that binding.
type AuthStateRepository interface {
	// Binding returns the client's current user, or nil when signed out.
	Binding(ctx context.Context, clientID string) (*AuthUser, error)
	SetBinding(ctx context.Context, clientID string, user AuthUser, ttl time.Duration) error
	ClearBinding(ctx context.Context, clientID string) error

	// Publish announces the client's new auth state (nil = signed out).
	Publish(ctx context.Context, clientID string, user *AuthUser) error
	// Subscribe opens the client's change stream. Messages arrive in publish order.
	Subscribe(ctx context.Context, clientID string) (AuthStateSubscription, error)
}

type AuthStateSubscription interface {
	// Changes yields decoded notifications; it is closed when the subscription ends.
	Changes() <-chan *AuthUser
	Close() error
}
