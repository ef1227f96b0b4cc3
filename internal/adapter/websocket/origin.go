package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// NewCheckOrigin returns a CheckOrigin function for the session watch upgrader.
// It allows empty origins (non-browser clients) and the app's own origin.
// When isDevelopment is true, localhost origins are additionally allowed.
func NewCheckOrigin(appURL string, isDevelopment bool) func(r *http.Request) bool {
	appOrigin := extractOrigin(appURL)

	return func(r *http.Request) bool {
		raw := r.Header.Get("Origin")
		if raw == "" {
			return true
		}

		origin := extractOrigin(raw)
		if origin != "" && origin == appOrigin {
			return true
		}

		if isDevelopment && isLocalhostOrigin(raw) {
			return true
		}

		slog.Warn("Session watch origin rejected", "origin", raw, "access", r.URL.Query().Get("access"), "remote_addr", r.RemoteAddr)
		return false
	}
}

// extractOrigin returns scheme://host of rawURL, lower-cased and without the
// scheme's default port, or "" when rawURL has no host.
func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case scheme == "https" && u.Port() == "443", scheme == "http" && u.Port() == "80":
		host = strings.ToLower(u.Hostname())
	}
	return scheme + "://" + host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
