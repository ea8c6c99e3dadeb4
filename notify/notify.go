// Package notify carries user-facing messages (toasts) from the session
// subsystem to whatever surface displays them.
package notify

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a single message for the user.
type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Notifier displays notifications. Implementations must not block for long;
// they are called on the goroutine that observed the failure.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// LogNotifier writes notifications to the zerolog global logger.
type LogNotifier struct{}

var _ Notifier = LogNotifier{}

func (LogNotifier) Notify(n Notification) {
	log.WithLevel(n.Severity.Level()).Str("severity", string(n.Severity)).Msg(n.Message)
}

// Level maps a severity to the zerolog level it is logged at.
func (s Severity) Level() zerolog.Level {
	switch s {
	case SeverityError:
		return zerolog.ErrorLevel
	case SeverityWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})
