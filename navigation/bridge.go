// Package navigation turns session domain events into route changes without
// the session or transport packages knowing about routing.
package navigation

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/events"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/rs/zerolog/log"
)

const (
	RouteLogin        = "/login"
	RouteLoginExpired = "/login?expired=true"
	RouteNotFound     = "/not-found"
)

// Navigator moves the host application to route.
type Navigator interface {
	Navigate(route string)
}

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// LogoutRoute is the login page variant for reason.
func LogoutRoute(reason session.LogoutReason) string {
	if reason == session.LogoutManual {
		return RouteLogin
	}
	return RouteLoginExpired
}

// Bridge listens on the logout and resource-not-found channels and navigates.
type Bridge struct {
	navigator Navigator

	mu     sync.Mutex
	cancel []func()
}

func NewBridge(navigator Navigator) *Bridge {
	return &Bridge{navigator: navigator}
}

// Attach subscribes to the given channels. Either may be nil.
func (b *Bridge) Attach(logouts *events.Channel[session.LogoutEvent], notFound *events.Channel[transport.ResourceNotFoundEvent]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if logouts != nil {
		b.cancel = append(b.cancel, logouts.Subscribe(b.onLogout))
	}
	if notFound != nil {
		b.cancel = append(b.cancel, notFound.Subscribe(b.onNotFound))
	}
}

// Detach removes every subscription made by Attach.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancel {
		cancel()
	}
	b.cancel = nil
}

func (b *Bridge) onLogout(e session.LogoutEvent) {
	route := LogoutRoute(e.Reason)
	log.Debug().Str("reason", string(e.Reason)).Str("route", route).Msg("Navigating after logout")
	b.navigator.Navigate(route)
}

func (b *Bridge) onNotFound(e transport.ResourceNotFoundEvent) {
	log.Debug().Str("path", e.Path).Msg("Navigating to not-found")
	b.navigator.Navigate(RouteNotFound)
}
