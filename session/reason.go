package session

import (
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/notify"
)

// LogoutReason is the closed set of causes for ending a session.
type LogoutReason string

const (
	LogoutManual       LogoutReason = "manual"       // The user asked to log out
	LogoutExpired      LogoutReason = "expired"      // The credential's exp passed
	LogoutUnauthorized LogoutReason = "unauthorized" // Malformed credential or a server 401
)

func ParseLogoutReason(s string) (LogoutReason, error) {
	switch r := LogoutReason(s); r {
	case LogoutManual, LogoutExpired, LogoutUnauthorized:
		return r, nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidLogoutReason, "%q", s)
	}
}

func (r LogoutReason) Valid() bool {
	_, err := ParseLogoutReason(string(r))
	return err == nil
}

// Notification is the message shown to the user when a session ends for r.
func (r LogoutReason) Notification() notify.Notification {
	switch r {
	case LogoutManual:
		return notify.Notification{Message: "You have been logged out.", Severity: notify.SeverityInfo}
	case LogoutExpired:
		return notify.Notification{Message: "Your session has expired. Please log in again.", Severity: notify.SeverityWarning}
	default:
		return notify.Notification{Message: "Your session is no longer valid. Please log in again.", Severity: notify.SeverityWarning}
	}
}

// LogoutEvent is emitted once per effective logout transition.
type LogoutEvent struct {
	Reason LogoutReason `json:"reason"`
}
