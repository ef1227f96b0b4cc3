package authstate

import (
	"context"
	"sync"

	"github.com/renangcr/devProperties/internal/domain"
)

// fakeProvider emits synthetic notifications synchronously, like a provider
// that serialises delivery on its own schedule.
type fakeProvider struct {
	mu           sync.Mutex
	fn           func(*domain.AuthUser)
	subscribeErr error
	subscribes   int
	unsubscribes int
	// onSubscribe runs inside Subscribe, before it returns.
	onSubscribe func(fn func(*domain.AuthUser))
}

func (p *fakeProvider) Subscribe(_ context.Context, fn func(*domain.AuthUser)) (func(), error) {
	p.mu.Lock()
	p.subscribes++
	if p.subscribeErr != nil {
		p.mu.Unlock()
		return nil, p.subscribeErr
	}
	p.fn = fn
	hook := p.onSubscribe
	p.mu.Unlock()

	if hook != nil {
		hook(fn)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.unsubscribes++
			p.mu.Unlock()
		})
	}, nil
}

// emit delivers a notification even after unsubscribe, imitating a stale callback.
func (p *fakeProvider) emit(user *domain.AuthUser) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(user)
	}
}

func (p *fakeProvider) counts() (subscribes, unsubscribes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribes, p.unsubscribes
}

func ana() *domain.AuthUser {
	return &domain.AuthUser{UID: "u1", DisplayName: "Ana", Email: "ana@x.com"}
}
