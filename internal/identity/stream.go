package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/renangcr/devProperties/internal/domain"
)

// OnAuthStateChanged streams the client's auth state to fn. The first call
// carries the restored binding (nil when signed out); later calls follow every
// published change. fn runs on a single goroutine, so calls never overlap.
//
// ctx bounds the subscription setup only. The stream lives until the returned
// unsubscribe func is called; calling it again is a no-op.
func (s *Service) OnAuthStateChanged(ctx context.Context, clientID string, fn func(*domain.AuthUser)) (func(), error) {
	// Subscribe before reading the binding so no change can slip in between.
	sub, err := s.states.Subscribe(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to auth state: %w", err)
	}

	restored, err := s.states.Binding(ctx, clientID)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to restore auth state: %w", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn(restored)

		changes := sub.Changes()
		for {
			select {
			case user, ok := <-changes:
				if !ok {
					return
				}
				fn(user)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
			wg.Wait()
		})
	}, nil
}

// ClientStream is one client's auth-state stream.
type ClientStream struct {
	svc      *Service
	clientID string
}

// ForClient binds OnAuthStateChanged to a client.
func (s *Service) ForClient(clientID string) ClientStream {
	return ClientStream{svc: s, clientID: clientID}
}

func (c ClientStream) Subscribe(ctx context.Context, fn func(*domain.AuthUser)) (func(), error) {
	return c.svc.OnAuthStateChanged(ctx, c.clientID, fn)
}
