package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/renangcr/devProperties/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 6

var ErrWeakPassword = fmt.Errorf("password must have at least %d characters", minPasswordLen)

type Option func(*Service)

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

type Service struct {
	accounts   domain.AccountRepository
	states     domain.AuthStateRepository
	bindingTTL time.Duration
	hashCost   int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(accounts domain.AccountRepository, states domain.AuthStateRepository, bindingTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		accounts:   accounts,
		states:     states,
		bindingTTL: bindingTTL,
		hashCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toAuthUser(a *domain.Account) domain.AuthUser {
	return domain.AuthUser{
		UID:         a.ID.String(),
		DisplayName: a.DisplayName,
		Email:       a.Email,
	}
}

// SignIn checks the credentials and binds the client to the account.
func (s *Service) SignIn(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrAccountNotFound) {
		// Same bcrypt work as a real check so response time does not reveal unknown emails.
		_ = bcrypt.CompareHashAndPassword(s.fakeHash(), []byte(password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user := toAuthUser(account)
	if err := s.bind(ctx, clientID, user); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User signed in", "client_id", clientID, "uid", user.UID)
	return &user, nil
}

// CreateAccount registers a new account and signs the client in. The display
// name is not part of the account yet; set it with UpdateProfile.
func (s *Service) CreateAccount(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error) {
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account, err := s.accounts.Create(ctx, normalizeEmail(email), string(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	user := toAuthUser(account)
	if err := s.bind(ctx, clientID, user); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Account created", "client_id", clientID, "uid", user.UID)
	return &user, nil
}

// UpdateProfile stores the display name. It publishes no notification.
func (s *Service) UpdateProfile(ctx context.Context, clientID, uid, displayName string) error {
	accountID, err := uuid.Parse(uid)
	if err != nil {
		return fmt.Errorf("invalid uid %q: %w", uid, domain.ErrAccountNotFound)
	}

	displayName = strings.TrimSpace(displayName)
	if err := s.accounts.UpdateDisplayName(ctx, accountID, displayName); err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}

	bound, err := s.states.Binding(ctx, clientID)
	if err != nil {
		return fmt.Errorf("failed to read client binding: %w", err)
	}
	if bound == nil || bound.UID != uid {
		return nil
	}

	bound.DisplayName = displayName
	if err := s.states.SetBinding(ctx, clientID, *bound, s.bindingTTL); err != nil {
		return fmt.Errorf("failed to rewrite client binding: %w", err)
	}
	return nil
}

// SignOut unbinds the client.
func (s *Service) SignOut(ctx context.Context, clientID string) error {
	if err := s.states.ClearBinding(ctx, clientID); err != nil {
		return fmt.Errorf("failed to clear client binding: %w", err)
	}
	if err := s.states.Publish(ctx, clientID, nil); err != nil {
		return fmt.Errorf("failed to publish sign-out: %w", err)
	}

	slog.InfoContext(ctx, "User signed out", "client_id", clientID)
	return nil
}

func (s *Service) bind(ctx context.Context, clientID string, user domain.AuthUser) error {
	if err := s.states.SetBinding(ctx, clientID, user, s.bindingTTL); err != nil {
		return fmt.Errorf("failed to bind client: %w", err)
	}
	if err := s.states.Publish(ctx, clientID, &user); err != nil {
		return fmt.Errorf("failed to publish sign-in: %w", err)
	}
	return nil
}

func (s *Service) fakeHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
	})
	return s.dummyHash
}
