package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/renangcr/devProperties/internal/domain"
)

type memAccounts struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*domain.Account
	lookupFn func(email string) error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: make(map[uuid.UUID]*domain.Account)}
}

func (m *memAccounts) Create(_ context.Context, email, passwordHash string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			return nil, domain.ErrEmailTaken
		}
	}
	a := &domain.Account{ID: uuid.New(), Email: email, PasswordHash: passwordHash}
	m.byID[a.ID] = a
	c := *a
	return &c, nil
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	if m.lookupFn != nil {
		if err := m.lookupFn(email); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *memAccounts) UpdateDisplayName(_ context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.DisplayName = name
	return nil
}

type memStates struct {
	mu           sync.Mutex
	bindings     map[string]domain.AuthUser
	subs         map[string][]*memSubscription
	published    map[string][]*domain.AuthUser
	subscribeErr error
	bindingErr   error
}

func newMemStates() *memStates {
	return &memStates{
		bindings:  make(map[string]domain.AuthUser),
		subs:      make(map[string][]*memSubscription),
		published: make(map[string][]*domain.AuthUser),
	}
}

func (m *memStates) Binding(_ context.Context, clientID string) (*domain.AuthUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bindingErr != nil {
		return nil, m.bindingErr
	}
	u, ok := m.bindings[clientID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStates) SetBinding(_ context.Context, clientID string, user domain.AuthUser, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[clientID] = user
	return nil
}

func (m *memStates) ClearBinding(_ context.Context, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, clientID)
	return nil
}

func (m *memStates) Publish(_ context.Context, clientID string, user *domain.AuthUser) error {
	m.mu.Lock()
	var copied *domain.AuthUser
	if user != nil {
		c := *user
		copied = &c
	}
	m.published[clientID] = append(m.published[clientID], copied)
	subs := append([]*memSubscription(nil), m.subs[clientID]...)
	m.mu.Unlock()

	for _, s := range subs {
		s.deliver(copied)
	}
	return nil
}

func (m *memStates) Subscribe(_ context.Context, clientID string) (domain.AuthStateSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	s := &memSubscription{ch: make(chan *domain.AuthUser, 16), stop: make(chan struct{})}
	m.subs[clientID] = append(m.subs[clientID], s)
	return s, nil
}

func (m *memStates) publishedTo(clientID string) []*domain.AuthUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuthUser(nil), m.published[clientID]...)
}

type memSubscription struct {
	ch     chan *domain.AuthUser
	stop   chan struct{}
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (s *memSubscription) deliver(u *domain.AuthUser) {
	select {
	case s.ch <- u:
	case <-s.stop:
	}
}

func (s *memSubscription) Changes() <-chan *domain.AuthUser { return s.ch }

func (s *memSubscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stop)
	})
	return nil
}

func (s *memSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
