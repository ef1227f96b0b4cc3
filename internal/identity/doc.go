// Package identity is the identity provider: it owns accounts and passwords,
// records which account each browser client is signed in as, and streams
// auth-state changes per client.
//
// Sign-in, sign-out and account creation never touch a client's session
// directly. They rewrite the client's binding and publish the change; the
// client's authstate.Resolver picks it up from the stream like any other
// notification. UpdateProfile is the exception: it persists the new display
// name without publishing, so callers apply it locally.
package identity
