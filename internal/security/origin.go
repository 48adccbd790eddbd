// Package security validates browser origins for the control API's
// WebSocket endpoint.
package security

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker validates WebSocket and CORS origins.
type OriginChecker struct {
	allowedOrigins    []string
	bindLocalhostOnly bool
}

// NewOriginChecker creates a new origin checker. With no allowed
// origins and bindLocalhostOnly false, every origin passes.
func NewOriginChecker(allowedOrigins []string, bindLocalhostOnly bool) *OriginChecker {
	return &OriginChecker{
		allowedOrigins:    allowedOrigins,
		bindLocalhostOnly: bindLocalhostOnly,
	}
}

// CheckOrigin reports whether the request's Origin header is allowed.
// Requests without an Origin header pass; browsers omit it for
// same-origin requests and non-browser clients do not send it.
func (oc *OriginChecker) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if oc.bindLocalhostOnly && IsLoopbackHost(parsed.Hostname()) {
		return true
	}

	for _, allowed := range oc.allowedOrigins {
		if matchOrigin(origin, allowed) {
			return true
		}
	}

	if len(oc.allowedOrigins) == 0 {
		// Localhost-only binds reject everything else; open binds are
		// development mode and accept any origin
		return !oc.bindLocalhostOnly
	}

	return false
}

// CheckOriginFunc returns a function suitable for
// websocket.Upgrader.CheckOrigin.
func (oc *OriginChecker) CheckOriginFunc() func(r *http.Request) bool {
	return oc.CheckOrigin
}

// IsLoopbackHost reports whether host names the local machine.
func IsLoopbackHost(host string) bool {
	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}

// matchOrigin checks an origin against an allowed pattern: exact match
// or wildcard subdomain ("*.example.com").
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if strings.HasPrefix(allowed, "*.") {
		domain := allowed[2:]
		if strings.HasSuffix(parsed.Hostname(), domain) {
			return true
		}
	}

	return false
}
