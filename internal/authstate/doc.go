// Package authstate tracks who is signed in for one application instance and
// decides whether a view may render.
//
// In this server an application instance is one browser client. Each client
// gets its own Store (the single source of truth for the current session) and
// Resolver (the bridge from the identity provider's auth-state stream into the
// Store). The Registry creates both lazily and tears them down when the client
// goes idle or the process stops.
//
// A Store starts unresolved: Read reports Resolving=true and no session until
// the provider delivers its first notification, whatever it says. Every later
// notification replaces the session wholesale. Decide turns a State into a
// navigation decision without touching any state, and Gate tracks that
// decision across changes for one mounted view (a live page's watch socket).
//
// Protected views never redirect while a client is still resolving, otherwise
// a signed-in user would bounce to the login page on every cold start.
package authstate
