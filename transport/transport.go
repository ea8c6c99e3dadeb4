// Package transport is the HTTP pipeline between application code and the
// backend: it attaches the session credential to outgoing requests and turns
// failed responses into session transitions, audit records and notifications.
package transport

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/session"
)

const (
	HeaderSubjectID = "X-Subject-Id"
	HeaderTenantID  = "X-Tenant-Id"

	// apiPrefix is the optional mount point of the API on the backend.
	apiPrefix = "/api"
)

// SessionAccessor is what the pipeline needs from the session. It reads the
// persisted values rather than in-memory state so every context attaches
// whatever was written last.
type SessionAccessor interface {
	PersistedCredential() (string, bool)
	PersistedIdentity() (session.Identity, error)
	Logout(reason session.LogoutReason)
}

var _ SessionAccessor = (*session.Store)(nil)

// Middleware wraps a RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain wraps base so that mw[0] is the outermost stage.
func Chain(base http.RoundTripper, mw ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	chained := base
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// pathMatcher reports whether a request path is one of the public endpoints.
// A configured path matches exactly, with or without the apiPrefix mount.
type pathMatcher []string

func (m pathMatcher) matches(path string) bool {
	unprefixed, mounted := strings.CutPrefix(path, apiPrefix)
	for _, p := range m {
		if p == "" {
			continue
		}
		if path == p || (mounted && unprefixed == p) {
			return true
		}
	}
	return false
}
