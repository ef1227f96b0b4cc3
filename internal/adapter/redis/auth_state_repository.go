package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/renangcr/devProperties/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	bindingKeyPrefix   = "auth:client:"
	stateChannelPrefix = "auth:state:"

	subscriptionBuffer = 16
)

func bindingKey(clientID string) string   { return bindingKeyPrefix + clientID }
func stateChannel(clientID string) string { return stateChannelPrefix + clientID }

// AuthStateRepo keeps which account each browser client is signed in as and
// fans out every change on a per-client channel. Payloads are the JSON user
// or the literal null for a sign-out.
type AuthStateRepo struct {
	rdb *goredis.Client
}

var _ domain.AuthStateRepository = (*AuthStateRepo)(nil)

func NewAuthStateRepo(rdb *goredis.Client) *AuthStateRepo {
	return &AuthStateRepo{rdb: rdb}
}

func (r *AuthStateRepo) Binding(ctx context.Context, clientID string) (*domain.AuthUser, error) {
	payload, err := r.rdb.Get(ctx, bindingKey(clientID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read binding: %w", err)
	}
	return decodeAuthUser(payload), nil
}

func (r *AuthStateRepo) SetBinding(ctx context.Context, clientID string, user domain.AuthUser, ttl time.Duration) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal binding: %w", err)
	}
	if err := r.rdb.Set(ctx, bindingKey(clientID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write binding: %w", err)
	}
	return nil
}

func (r *AuthStateRepo) ClearBinding(ctx context.Context, clientID string) error {
	if err := r.rdb.Del(ctx, bindingKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to delete binding: %w", err)
	}
	return nil
}

func (r *AuthStateRepo) Publish(ctx context.Context, clientID string, user *domain.AuthUser) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal auth state: %w", err)
	}
	if err := r.rdb.Publish(ctx, stateChannel(clientID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish auth state: %w", err)
	}
	return nil
}

// Subscribe returns once redis has confirmed the subscription, so a Publish
// issued after it returns is guaranteed to be delivered.
func (r *AuthStateRepo) Subscribe(ctx context.Context, clientID string) (domain.AuthStateSubscription, error) {
	ps := r.rdb.Subscribe(ctx, stateChannel(clientID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", stateChannel(clientID), err)
	}

	sub := &authStateSubscription{
		ps:      ps,
		changes: make(chan *domain.AuthUser, subscriptionBuffer),
		stop:    make(chan struct{}),
	}
	go sub.run(clientID)
	return sub, nil
}

type authStateSubscription struct {
	ps      *goredis.PubSub
	changes chan *domain.AuthUser
	stop    chan struct{}
	once    sync.Once
}

func (s *authStateSubscription) run(clientID string) {
	defer close(s.changes)

	msgs := s.ps.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			user := decodeAuthUser([]byte(msg.Payload))
			// Never drop: a lost sign-out would leave the client signed in.
			select {
			case s.changes <- user:
			case <-s.stop:
				return
			}
		case <-s.stop:
			slog.Debug("Auth state subscription closed", "client_id", clientID)
			return
		}
	}
}

func (s *authStateSubscription) Changes() <-chan *domain.AuthUser {
	return s.changes
}

func (s *authStateSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.ps.Close()
	})
	return err
}

// decodeAuthUser maps null to nil. Anything undecodable becomes a user without
// a UID, which the resolver treats as signed out.
func decodeAuthUser(payload []byte) *domain.AuthUser {
	var user *domain.AuthUser
	if err := json.Unmarshal(payload, &user); err != nil {
		slog.Warn("Undecodable auth state payload", "error", err)
		return &domain.AuthUser{}
	}
	return user
}
