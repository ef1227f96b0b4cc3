// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (account.go, listing.go, identity.go, errors.go) hold
// shared types and repository contracts. No implementation code lives here;
// keeping the interfaces on this side prevents circular imports between the
// application layer and its adapters.
package domain
