package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// newCheckOrigin accepts requests without an Origin header (non-browser
// clients) and origins on the allow list. "*" allows everything.
func newCheckOrigin(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}

	normalized := make([]string, 0, len(allowed))
	for _, o := range allowed {
		normalized = append(normalized, normalizeOrigin(o))
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(normalized, normalizeOrigin(origin)) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
