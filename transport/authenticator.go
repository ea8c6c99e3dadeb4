package transport

import (
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-auth-client/claims"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/rs/zerolog/log"
)

// Authenticator attaches the persisted credential to outgoing requests and
// refuses to send a request whose credential is already known to be bad.
type Authenticator struct {
	next        http.RoundTripper
	session     SessionAccessor
	codec       *claims.Codec
	publicPaths pathMatcher
}

func NewAuthenticator(next http.RoundTripper, accessor SessionAccessor, codec *claims.Codec, publicPaths []string) *Authenticator {
	if next == nil {
		next = http.DefaultTransport
	}
	if codec == nil {
		codec = claims.NewCodec()
	}
	return &Authenticator{
		next:        next,
		session:     accessor,
		codec:       codec,
		publicPaths: pathMatcher(publicPaths),
	}
}

// Authenticate returns the Authenticator as a Middleware for Chain.
func Authenticate(accessor SessionAccessor, codec *claims.Codec, publicPaths []string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return NewAuthenticator(next, accessor, codec, publicPaths)
	}
}

func (a *Authenticator) RoundTrip(r *http.Request) (*http.Response, error) {
	if a.publicPaths.matches(r.URL.Path) {
		return a.next.RoundTrip(r)
	}

	credential, ok := a.session.PersistedCredential()
	if !ok {
		return a.next.RoundTrip(r)
	}

	_, err := a.codec.Validate(credential)
	switch {
	case apperrors.Is(err, apperrors.ErrKeysUnavailable):
		// The backend checks the signature itself; say nothing about the session.
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Could not verify credential locally, sending as is")
	case apperrors.Is(err, apperrors.ErrTokenExpired):
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("Credential expired before request, logging out")
		a.session.Logout(session.LogoutExpired)
		return nil, a.veto(r, apperrors.ErrTokenExpired)
	case err != nil:
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Persisted credential does not decode, logging out")
		a.session.Logout(session.LogoutUnauthorized)
		return nil, a.veto(r, apperrors.ErrInvalidToken)
	}

	out := r.Clone(r.Context())
	out.Header.Set("Authorization", "Bearer "+credential)

	identity, err := a.session.PersistedIdentity()
	if err != nil {
		log.Debug().Err(err).Msg("Session snapshot unreadable, sending without identity headers")
	} else {
		out.Header.Set(HeaderSubjectID, identity.SubjectID)
		out.Header.Set(HeaderTenantID, strconv.FormatInt(identity.TenantID, 10))
	}

	return a.next.RoundTrip(out)
}

func (a *Authenticator) veto(r *http.Request, err error) error {
	if r.Body != nil {
		_ = r.Body.Close()
	}
	return &VetoError{Method: r.Method, Path: r.URL.Path, Err: err}
}
