package session

import (
	"context"
	"time"
)

// WatchExpiry calls CheckExpiration every interval until ctx is done, so a
// session ends close to its exp even when no request is made.
func (s *Store) WatchExpiry(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckExpiration()
		}
	}
}
