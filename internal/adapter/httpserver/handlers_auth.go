package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/domain"
	"github.com/renangcr/devProperties/internal/identity"
)

func (s *Server) registerAuthRoutes() {
	limiter := newRateLimiter(s.config.AuthRateLimit, s.config.AuthRateBurst)

	s.page(http.MethodGet, "/login", s.handleLoginPage, s.guestOnly)
	s.page(http.MethodPost, "/login", s.handleLogin, limiter, s.guestOnly)
	s.page(http.MethodGet, "/registrar", s.handleRegisterPage, s.guestOnly)
	s.page(http.MethodPost, "/registrar", s.handleRegister, limiter, s.guestOnly)

	s.page(http.MethodPost, "/logout", s.handleLogout, s.requireAuth)
}

func (s *Server) handleLoginPage(c echo.Context) error {
	return s.renderTemplate(c, "login.html", s.pageData(c, authstate.GuestOnly, s.currentState(c)))
}

func (s *Server) handleRegisterPage(c echo.Context) error {
	return s.renderTemplate(c, "register.html", s.pageData(c, authstate.GuestOnly, s.currentState(c)))
}

func (s *Server) handleLogin(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	renderForm := func(status int, flash string) error {
		data := s.pageData(c, authstate.GuestOnly, s.currentState(c))
		data["Flash"] = flash
		data["Email"] = email
		return s.renderTemplateStatus(c, status, "login.html", data)
	}

	if email == "" || password == "" {
		return renderForm(http.StatusBadRequest, "Preencha e-mail e senha")
	}

	id, err := s.rotateClientID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := s.identity.SignIn(ctx, id, email, password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return renderForm(http.StatusUnauthorized, "E-mail ou senha inválidos")
	}
	if err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}

	if _, err := s.awaitIdentity(c, user.UID); err != nil {
		slog.WarnContext(ctx, "Sign-in not yet visible to session", "client_id", id, "error", err)
	}
	return redirect(c, authstate.DashboardPath)
}

func (s *Server) handleRegister(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.TrimSpace(c.FormValue("email"))
	password := c.FormValue("password")

	renderForm := func(status int, flash string) error {
		data := s.pageData(c, authstate.GuestOnly, s.currentState(c))
		data["Flash"] = flash
		data["Name"] = name
		data["Email"] = email
		return s.renderTemplateStatus(c, status, "register.html", data)
	}

	if name == "" || email == "" {
		return renderForm(http.StatusBadRequest, "Preencha nome e e-mail")
	}

	id, err := s.rotateClientID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := s.identity.CreateAccount(ctx, id, email, password)
	switch {
	case errors.Is(err, identity.ErrWeakPassword):
		return renderForm(http.StatusBadRequest, "A senha precisa ter pelo menos 6 caracteres")
	case errors.Is(err, domain.ErrEmailTaken):
		return renderForm(http.StatusConflict, "Este e-mail já está cadastrado")
	case err != nil:
		return fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.identity.UpdateProfile(ctx, id, user.UID, name); err != nil {
		return fmt.Errorf("failed to store display name: %w", err)
	}

	// The creation notification carries no name; merge it locally once the
	// session shows the new identity instead of waiting for another round trip.
	store, err := s.awaitIdentity(c, user.UID)
	if err != nil {
		slog.WarnContext(ctx, "Registration not yet visible to session", "client_id", id, "error", err)
		return redirect(c, authstate.DashboardPath)
	}
	store.UpdateLocal(authstate.Profile{DisplayName: &name})
	return redirect(c, authstate.DashboardPath)
}

func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.identity.SignOut(ctx, clientID(c)); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	if inst, err := s.instance(c); err == nil {
		waitCtx, cancel := context.WithTimeout(ctx, s.config.AuthResolveWait)
		defer cancel()
		_, _ = inst.Store().WaitFor(waitCtx, func(st authstate.State) bool { return !st.Signed() })
	}
	return redirect(c, authstate.LoginPath)
}

// awaitIdentity waits, bounded by AuthResolveWait, until the browser's store
// reports uid as the signed-in identity.
func (s *Server) awaitIdentity(c echo.Context, uid string) (*authstate.Store, error) {
	inst, err := s.instance(c)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.AuthResolveWait)
	defer cancel()

	store := inst.Store()
	_, err = store.WaitFor(ctx, func(st authstate.State) bool {
		user, ok := st.User()
		return ok && user.Identity == uid
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for identity %s: %w", uid, err)
	}
	return store, nil
}
