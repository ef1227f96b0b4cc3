// Package app provides the application service layer.
//
// Orchestrates the listing use cases: draft image uploads, listing creation and
// deletion by their owner, and the public browse, search and detail queries.
// Depends on domain interfaces, not concrete implementations.
package app
