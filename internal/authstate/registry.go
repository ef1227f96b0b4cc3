package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const subscribeTimeout = 5 * time.Second

var ErrRegistryClosed = errors.New("auth state registry closed")

// Metrics receives registry and resolver events.
type Metrics interface {
	InstanceOpened()
	InstanceClosed()
	NotificationApplied(Outcome)
}

type noopMetrics struct{}

func (noopMetrics) InstanceOpened()             {}
func (noopMetrics) InstanceClosed()             {}
func (noopMetrics) NotificationApplied(Outcome) {}

// Instance is the auth state of one browser client.
type Instance struct {
	clientID string
	store    *Store
	resolver *Resolver
	registry *Registry

	// Guarded by registry.mu.
	lastSeen time.Time
	watchers int
}

func (i *Instance) ClientID() string { return i.clientID }
func (i *Instance) Store() *Store    { return i.store }
func (i *Instance) Read() State      { return i.store.Read() }

// Watch is Store.Watch that also marks the instance busy: it is not evicted
// while any watch is open, and its idle time restarts when the last one ends.
func (i *Instance) Watch() (<-chan struct{}, func()) {
	r := i.registry
	r.mu.Lock()
	i.watchers++
	r.mu.Unlock()

	changes, cancel := i.store.Watch()
	var once sync.Once
	return changes, func() {
		once.Do(func() {
			cancel()
			r.mu.Lock()
			i.watchers--
			i.lastSeen = r.clock.Now()
			r.mu.Unlock()
		})
	}
}

// SubscriberFactory returns the provider stream for a client.
type SubscriberFactory func(clientID string) Subscriber

type RegistryOption func(*Registry)

func WithMetrics(m Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func WithClock(clock clockwork.Clock) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

// Registry owns the per-client instances.
type Registry struct {
	subscribers SubscriberFactory
	idleTTL     time.Duration
	clock       clockwork.Clock
	metrics     Metrics

	mu        sync.Mutex
	instances map[string]*Instance
	closed    bool
	creating  singleflight.Group
}

func NewRegistry(subscribers SubscriberFactory, idleTTL time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		subscribers: subscribers,
		idleTTL:     idleTTL,
		clock:       clockwork.NewRealClock(),
		metrics:     noopMetrics{},
		instances:   make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the client's instance, creating and subscribing it on first use.
func (r *Registry) Get(ctx context.Context, clientID string) (*Instance, error) {
	if inst, ok, err := r.lookup(clientID); err != nil || ok {
		return inst, err
	}

	v, err, _ := r.creating.Do(clientID, func() (any, error) {
		if inst, ok, err := r.lookup(clientID); err != nil || ok {
			return inst, err
		}
		return r.create(ctx, clientID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Instance), nil
}

func (r *Registry) lookup(clientID string) (*Instance, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrRegistryClosed
	}
	inst, ok := r.instances[clientID]
	if ok {
		inst.lastSeen = r.clock.Now()
	}
	return inst, ok, nil
}

func (r *Registry) create(ctx context.Context, clientID string) (*Instance, error) {
	// The subscription outlives the request that triggered it.
	setupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), subscribeTimeout)
	defer cancel()

	store := NewStore()
	resolver, err := NewResolver(setupCtx, r.subscribers(clientID), store,
		WithOutcomeObserver(r.metrics.NotificationApplied),
		WithLogger(slog.Default().With("client_id", clientID)),
	)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", clientID, err)
	}

	inst := &Instance{
		clientID: clientID,
		store:    store,
		resolver: resolver,
		registry: r,
		lastSeen: r.clock.Now(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		resolver.Close()
		return nil, ErrRegistryClosed
	}
	r.instances[clientID] = inst
	r.mu.Unlock()

	r.metrics.InstanceOpened()
	slog.Debug("Auth state instance created", "client_id", clientID)
	return inst, nil
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// EvictIdle tears down instances not used within the idle TTL. Watched
// instances are never idle.
func (r *Registry) EvictIdle() int {
	now := r.clock.Now()

	r.mu.Lock()
	var idle []*Instance
	for id, inst := range r.instances {
		if inst.watchers == 0 && now.Sub(inst.lastSeen) >= r.idleTTL {
			idle = append(idle, inst)
			delete(r.instances, id)
		}
	}
	r.mu.Unlock()

	for _, inst := range idle {
		r.teardown(inst)
	}
	return len(idle)
}

// StartEviction runs EvictIdle every interval until the returned stop func is called.
func (r *Registry) StartEviction(interval time.Duration) func() {
	ticker := r.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if n := r.EvictIdle(); n > 0 {
					slog.Debug("Evicted idle auth state instances", "count", n, "remaining", r.Len())
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Close tears down every instance. Later Get calls fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	all := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		all = append(all, inst)
	}
	clear(r.instances)
	r.mu.Unlock()

	for _, inst := range all {
		r.teardown(inst)
	}
}

func (r *Registry) teardown(inst *Instance) {
	inst.resolver.Close()
	r.metrics.InstanceClosed()
}
