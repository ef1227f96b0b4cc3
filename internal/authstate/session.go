package authstate

// Session is the signed-in identity of an application instance.
// Empty DisplayName or Email means the provider did not supply one.
type Session struct {
	Identity    string
	DisplayName string
	Email       string
}

// Profile is a partial update for UpdateLocal. Nil fields are left untouched.
type Profile struct {
	DisplayName *string
	Email       *string
}

// State is a snapshot of a Store.
type State struct {
	Session   *Session
	Resolving bool
}

// Signed reports whether a session is present.
func (s State) Signed() bool {
	return s.Session != nil
}

// User returns a copy of the session, or false when signed out.
func (s State) User() (Session, bool) {
	if s.Session == nil {
		return Session{}, false
	}
	return *s.Session, true
}

// Reader is the read-only view of a Store handed to rendering code.
type Reader interface {
	Read() State
}

func cloneSession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func sameSession(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
