package httpserver

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/renangcr/devProperties/internal/authstate"
	apperrors "github.com/renangcr/devProperties/internal/platform/errors"
)

// resolvedState waits up to AuthResolveWait for the first notification so
// that most requests are answered with a definite decision.
func (s *Server) resolvedState(c echo.Context, inst *authstate.Instance) authstate.State {
	st := inst.Read()
	if !st.Resolving || s.config.AuthResolveWait <= 0 {
		return st
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.AuthResolveWait)
	defer cancel()
	st, _ = inst.Store().WaitResolved(ctx)
	return st
}

// requireAuth renders the route only for a resolved, signed-in browser.
// An unresolved session gets the placeholder page, never a redirect.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		inst, err := s.instance(c)
		if err != nil {
			return err
		}

		st := s.resolvedState(c, inst)
		decision := authstate.Decide(st, authstate.Protected)
		s.guardObserver.GuardDecision(authstate.Protected, decision)

		switch decision {
		case authstate.Wait:
			if c.Request().Method != http.MethodGet {
				return apperrors.UnavailableError("Sua sessão ainda está carregando. Tente novamente.", nil)
			}
			return s.renderPending(c, st)
		case authstate.RedirectToLogin:
			return redirect(c, decision.Location())
		}

		user, _ := st.User()
		userID, err := uuid.Parse(user.Identity)
		if err != nil {
			return apperrors.InternalError("session identity is not a uuid", err)
		}

		c.Set(ctxKeyState, st)
		c.Set(ctxKeyUserID, userID)
		return next(c)
	}
}

// guestOnly sends signed-in browsers away from the login and registration pages.
func (s *Server) guestOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		inst, err := s.instance(c)
		if err != nil {
			return err
		}

		st := s.resolvedState(c, inst)
		decision := authstate.Decide(st, authstate.GuestOnly)
		s.guardObserver.GuardDecision(authstate.GuestOnly, decision)

		if decision == authstate.RedirectToDashboard {
			return redirect(c, decision.Location())
		}

		c.Set(ctxKeyState, st)
		return next(c)
	}
}

func (s *Server) renderPending(c echo.Context, st authstate.State) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return s.renderTemplate(c, "pending.html", s.pageData(c, authstate.Protected, st))
}

func userID(c echo.Context) uuid.UUID {
	id, _ := c.Get(ctxKeyUserID).(uuid.UUID)
	return id
}

func redirect(c echo.Context, location string) error {
	return c.Redirect(http.StatusSeeOther, location)
}
