package httpserver

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/renangcr/devProperties/internal/adapter/metrics"
	"github.com/renangcr/devProperties/web"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.promRegistry != nil {
		s.echo.Use(metrics.NewHTTPMetrics(s.promRegistry).Middleware())
	}
	s.echo.Use(s.ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		HSTSPreloadEnabled: true,
		ContentSecurityPolicy: "default-src 'self'; " +
			"img-src 'self' data:; " +
			"connect-src 'self' ws: wss:; " +
			"frame-ancestors 'none'",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()
	s.registerStaticRoutes()
	if s.promRegistry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.promRegistry)))
	}
	s.echo.GET("/images/:id", s.handleImage)

	s.csrf = s.setupCSRFMiddleware("form:csrf_token,header:X-CSRF-Token")
	s.uploadCSRF = s.setupCSRFMiddleware("query:csrf_token")
	s.registerListingRoutes()
	s.registerAuthRoutes()
	s.registerDashboardRoutes()
	s.page(http.MethodGet, "/session/watch", s.handleSessionWatch)
}

// page registers a browser-facing route. Pages carry the client cookie and
// CSRF protection ahead of any route-specific middleware.
func (s *Server) page(method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{s.clientMiddleware, s.csrf}, m...)
	s.echo.Add(method, path, h, mw...)
}

func (s *Server) registerStaticRoutes() {
	static, err := fs.Sub(web.StaticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets missing from embed: %v", err))
	}
	s.echo.StaticFS("/static", static)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

// setupCSRFMiddleware returns CSRF protection reading the token from tokenLookup.
// Every instance shares the same cookie, so one token serves all forms.
func (s *Server) setupCSRFMiddleware(tokenLookup string) echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    tokenLookup,
		CookieName:     "csrf_token",
		CookiePath:     "/",
		CookieMaxAge:   int(s.config.SessionMaxAge.Seconds()),
		CookieHTTPOnly: true,
		CookieSecure:   s.config.IsProduction(),
		CookieSameSite: http.SameSiteStrictMode,
	})
}
