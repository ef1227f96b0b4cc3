// Package redis holds the go-redis backed adapters: the client constructor
// with its circuit breaker hook, and the per-client auth state bindings and
// change notifications used by the identity provider.
package redis
