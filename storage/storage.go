// Package storage is the durable key/value layer shared by every session
// context on a host, together with notifications about changes to it.
package storage

import (
	"regexp"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Storage is a synchronous string key/value store. Get returns
// apperrors.ErrKeyNotFound for a missing key; Remove of a missing key is not
// an error.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Change reports that key was written or removed by some context. Receivers
// re-read the key to learn the current value.
type Change struct {
	Key string
}

// ChangeSource delivers Change notifications. Subscribers may receive changes
// caused by their own writes and must tolerate coalesced or late deliveries.
type ChangeSource interface {
	Subscribe(fn func(Change)) (cancel func(), err error)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateKey rejects keys that cannot be used as a file name.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return apperrors.Wrapf(apperrors.ErrInvalidKey, "key %q", key)
	}
	return nil
}
