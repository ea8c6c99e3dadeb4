package transport

import (
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// VetoError is returned when a request was stopped before reaching the
// network because the local credential could not be used.
type VetoError struct {
	Method string
	Path   string
	Err    error
}

func (e *VetoError) Error() string {
	return fmt.Sprintf("%s %s not sent: %v", e.Method, e.Path, e.Err)
}

func (e *VetoError) Unwrap() error {
	return e.Err
}

type Kind int

const (
	KindUnauthorized Kind = iota + 1
	KindResourceNotFound
	KindNotFound
	KindForbidden
	KindClientError
	KindServerError
	KindTimeout
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindResourceNotFound:
		return "resource_not_found"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthorized:
		return apperrors.ErrUnauthorized
	case KindResourceNotFound, KindNotFound:
		return apperrors.ErrNotFound
	case KindForbidden:
		return apperrors.ErrForbidden
	case KindServerError:
		return apperrors.ErrServer
	case KindTimeout:
		return apperrors.ErrTimeout
	case KindNetwork:
		return apperrors.ErrNetwork
	default:
		return apperrors.ErrRequestFailed
	}
}

// ResponseError is a classified request failure. StatusCode is zero when no
// response was received.
type ResponseError struct {
	Kind       Kind
	StatusCode int
	Method     string
	Path       string
	Body       string
	Err        error // transport error when no response was received
}

func (e *ResponseError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *ResponseError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind.sentinel(), e.Err}
	}
	return []error{e.Kind.sentinel()}
}

// Retryable reports whether a user-initiated retry could succeed without a
// new session.
func (e *ResponseError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork, KindServerError:
		return true
	default:
		return false
	}
}
