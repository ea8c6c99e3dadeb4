package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/audit"
	"github.com/jrsteele09/go-auth-client/events"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/notify"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/rs/zerolog/log"
)

const defaultAuditTimeout = 5 * time.Second

var DefaultResourceTypes = []string{"folders", "documents", "users", "organizations", "acl"}

// ResourceNotFoundEvent asks the UI to show the generic not-found page. It
// deliberately carries no hint of whether the resource exists elsewhere.
type ResourceNotFoundEvent struct {
	Path     string
	TenantID int64
}

// notifications by failure kind. Unauthorized and tenant-scoped 404 are
// reported through logout and navigation instead.
var kindNotifications = map[Kind]notify.Notification{
	KindNotFound:    {Message: "The requested item could not be found.", Severity: notify.SeverityWarning},
	KindForbidden:   {Message: "You do not have permission to perform this action.", Severity: notify.SeverityError},
	KindClientError: {Message: "The request could not be completed.", Severity: notify.SeverityError},
	KindServerError: {Message: "The server encountered an error. Please try again later.", Severity: notify.SeverityError},
	KindTimeout:     {Message: "The request timed out. Please try again.", Severity: notify.SeverityWarning},
	KindNetwork:     {Message: "Unable to reach the server. Check your connection and try again.", Severity: notify.SeverityError},
}

// Classifier turns failed responses into session, audit and notification
// side effects and returns them to the caller as *ResponseError.
type Classifier struct {
	next         http.RoundTripper
	session      SessionAccessor
	notifier     notify.Notifier
	sink         audit.Sink
	notFound     *events.Channel[ResourceNotFoundEvent]
	resourcePath *regexp.Regexp
	publicPaths  pathMatcher
	auditTimeout time.Duration
	nowFunc      func() time.Time
}

type ClassifierOption func(*Classifier)

func WithAuditSink(sink audit.Sink) ClassifierOption {
	return func(c *Classifier) {
		c.sink = sink
	}
}

func WithAuditTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		c.auditTimeout = d
	}
}

func WithClassifierNotifier(n notify.Notifier) ClassifierOption {
	return func(c *Classifier) {
		c.notifier = n
	}
}

// WithNotFoundChannel shares the resource-not-found channel with listeners.
func WithNotFoundChannel(ch *events.Channel[ResourceNotFoundEvent]) ClassifierOption {
	return func(c *Classifier) {
		c.notFound = ch
	}
}

func WithResourceTypes(types []string) ClassifierOption {
	return func(c *Classifier) {
		c.resourcePath = resourcePattern(types)
	}
}

func WithPublicPaths(paths []string) ClassifierOption {
	return func(c *Classifier) {
		c.publicPaths = pathMatcher(paths)
	}
}

func WithClassifierNowFunc(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		c.nowFunc = now
	}
}

func NewClassifier(next http.RoundTripper, accessor SessionAccessor, options ...ClassifierOption) *Classifier {
	if next == nil {
		next = http.DefaultTransport
	}
	c := &Classifier{
		next:         next,
		session:      accessor,
		notifier:     notify.LogNotifier{},
		resourcePath: resourcePattern(DefaultResourceTypes),
		auditTimeout: defaultAuditTimeout,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.notFound == nil {
		c.notFound = events.NewChannel[ResourceNotFoundEvent]("resource-not-found")
	}
	return c
}

// Classify returns the Classifier as a Middleware for Chain.
func Classify(accessor SessionAccessor, options ...ClassifierOption) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return NewClassifier(next, accessor, options...)
	}
}

func (c *Classifier) NotFoundEvents() *events.Channel[ResourceNotFoundEvent] {
	return c.notFound
}

// resourcePattern matches /{type}/{id}, optionally under apiPrefix.
func resourcePattern(types []string) *regexp.Regexp {
	quoted := make([]string, 0, len(types))
	for _, t := range types {
		if t = strings.Trim(strings.TrimSpace(t), "/"); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return regexp.MustCompile(`$.^`)
	}
	return regexp.MustCompile(`^(?:` + regexp.QuoteMeta(apiPrefix) + `)?/(?:` + strings.Join(quoted, "|") + `)/[^/]+/?$`)
}

// IsResourcePath reports whether path addresses a single tenant-scoped item.
func (c *Classifier) IsResourcePath(path string) bool {
	return c.resourcePath.MatchString(path)
}

func (c *Classifier) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := c.next.RoundTrip(r)
	if err != nil {
		var veto *VetoError
		if apperrors.As(err, &veto) {
			return nil, err
		}
		return nil, c.transportFailure(r, err)
	}
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	body := readErrorBody(resp)
	respErr := &ResponseError{
		StatusCode: resp.StatusCode,
		Method:     r.Method,
		Path:       r.URL.Path,
		Body:       body,
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		respErr.Kind = KindUnauthorized
		if c.publicPaths.matches(r.URL.Path) {
			log.Debug().Str("path", r.URL.Path).Msg("401 from public endpoint")
			return nil, respErr
		}
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Msg("Server rejected credential, logging out")
		c.session.Logout(session.LogoutUnauthorized)
	case resp.StatusCode == http.StatusNotFound && c.IsResourcePath(r.URL.Path):
		respErr.Kind = KindResourceNotFound
		c.resourceNotFound(r)
	case resp.StatusCode == http.StatusNotFound:
		respErr.Kind = KindNotFound
		c.notifier.Notify(kindNotifications[respErr.Kind])
	case resp.StatusCode == http.StatusForbidden:
		respErr.Kind = KindForbidden
		c.notifier.Notify(kindNotifications[respErr.Kind])
	case resp.StatusCode >= http.StatusInternalServerError:
		respErr.Kind = KindServerError
		c.notifier.Notify(kindNotifications[respErr.Kind])
	default:
		respErr.Kind = KindClientError
		c.notifier.Notify(kindNotifications[respErr.Kind])
	}

	log.Debug().Str("kind", respErr.Kind.String()).Int("status", resp.StatusCode).Str("path", r.URL.Path).Msg("Request failed")
	return nil, respErr
}

func (c *Classifier) transportFailure(r *http.Request, err error) error {
	kind := KindNetwork
	if isTimeout(err) {
		kind = KindTimeout
	}
	log.Warn().Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("Request did not complete")
	c.notifier.Notify(kindNotifications[kind])
	return &ResponseError{Kind: kind, Method: r.Method, Path: r.URL.Path, Err: err}
}

func (c *Classifier) resourceNotFound(r *http.Request) {
	var tenantID int64
	if identity, err := c.session.PersistedIdentity(); err == nil {
		tenantID = identity.TenantID
	}

	if c.sink != nil {
		event := audit.NewCrossTenantAttempt(r.URL.Path, r.Method, tenantID, c.nowFunc())
		go c.recordAudit(event)
	}
	c.notFound.Emit(ResourceNotFoundEvent{Path: r.URL.Path, TenantID: tenantID})
}

func (c *Classifier) recordAudit(event audit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), c.auditTimeout)
	defer cancel()
	if err := c.sink.Record(ctx, event); err != nil {
		log.Warn().Err(err).Str("path", event.ResourcePath).Msg("Failed to record audit event")
	}
}

func isTimeout(err error) bool {
	if apperrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return apperrors.As(err, &netErr) && netErr.Timeout()
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	return string(data)
}
