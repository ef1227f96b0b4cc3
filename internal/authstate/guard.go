package authstate

// Access is the protection level of a route.
type Access int

const (
	Public Access = iota
	Protected
	// GuestOnly routes (login, registration) send signed-in users away.
	GuestOnly
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case GuestOnly:
		return "guest_only"
	default:
		return "unknown"
	}
}

type Decision int

const (
	Render Decision = iota
	// Wait means the session is not known yet: show a neutral placeholder.
	Wait
	RedirectToLogin
	RedirectToDashboard
)

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToDashboard:
		return "redirect_dashboard"
	default:
		return "unknown"
	}
}

// Location returns the redirect target, or "" for non-redirect decisions.
func (d Decision) Location() string {
	switch d {
	case RedirectToLogin:
		return LoginPath
	case RedirectToDashboard:
		return DashboardPath
	default:
		return ""
	}
}

// Decide maps a session state onto what a route of the given access should do.
func Decide(st State, access Access) Decision {
	switch access {
	case Protected:
		if st.Resolving {
			return Wait
		}
		if st.Session == nil {
			return RedirectToLogin
		}
		return Render
	case GuestOnly:
		if !st.Resolving && st.Session != nil {
			return RedirectToDashboard
		}
		return Render
	default:
		return Render
	}
}

type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseAllowed     Phase = "allowed"
	PhaseRedirecting Phase = "redirecting"
)

// Gate follows one mounted protected view through session changes:
// pending -> allowed | redirecting, allowed -> redirecting. Redirecting is final.
type Gate struct {
	phase Phase
}

func NewGate() *Gate {
	return &Gate{phase: PhasePending}
}

func (g *Gate) Phase() Phase {
	return g.phase
}

// Observe feeds the latest state and reports the resulting phase and whether it changed.
func (g *Gate) Observe(st State) (Phase, bool) {
	next := g.phase
	switch g.phase {
	case PhasePending, PhaseAllowed:
		switch Decide(st, Protected) {
		case Render:
			next = PhaseAllowed
		case RedirectToLogin:
			next = PhaseRedirecting
		}
	}

	changed := next != g.phase
	g.phase = next
	return next, changed
}
