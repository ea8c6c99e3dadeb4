// Package claims decodes bearer credentials into the session facts the
// client cares about and decides whether they are still usable.
package claims

import (
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Claims is the structured view of a credential. It is derived on demand and
// never stored on its own.
type Claims struct {
	SubjectID string    // Authenticated principal ("sub")
	TenantID  int64     // Active organization ("tenantId")
	Roles     []string  // Role codes granted in the tenant
	IssuedAt  time.Time // "iat", zero when absent
	ExpiresAt time.Time // "exp", always present on a decoded value
}

// HasRole reports whether role was granted.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DecodeError is returned when a credential is not a well-formed token.
// It is always a local failure.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode credential: %s", e.Reason)
	}
	return fmt.Sprintf("decode credential: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperrors.ErrInvalidToken}
	}
	return []error{apperrors.ErrInvalidToken, e.Err}
}
