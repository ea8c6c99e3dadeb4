// Package crosstab keeps one context's session in step with sibling contexts
// that share its durable storage.
package crosstab

import (
	"sync"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/rs/zerolog/log"
)

// Synchronizer reacts to foreign changes of the session snapshot. It only
// reads storage; every transition goes through the Store.
type Synchronizer struct {
	store  *session.Store
	source storage.ChangeSource

	mu     sync.Mutex
	cancel func()
}

func New(store *session.Store, source storage.ChangeSource) *Synchronizer {
	return &Synchronizer{store: store, source: source}
}

// Start subscribes to the change source. Calling it twice is a no-op.
func (s *Synchronizer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	cancel, err := s.source.Subscribe(s.HandleChange)
	if err != nil {
		return apperrors.Wrapf(err, "Synchronizer.Start")
	}
	s.cancel = cancel
	log.Debug().Str("instance", s.store.InstanceID()).Msg("Cross-context sync started")
	return nil
}

func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// HandleChange re-reads the snapshot and reconciles the store with it.
// Deliveries may be late or coalesced, so only the current value matters.
func (s *Synchronizer) HandleChange(change storage.Change) {
	if change.Key != s.store.SnapshotKey() {
		return
	}

	snap, err := s.store.ReadSnapshot()
	switch {
	case apperrors.Is(err, apperrors.ErrKeyNotFound):
		s.removed()
		return
	case err != nil:
		log.Warn().Err(err).Msg("Shared session snapshot unreadable")
		s.failClosed()
		return
	}

	if snap.Origin == s.store.InstanceID() {
		return
	}
	if snap.State.Credential == "" || !snap.State.IsAuthenticated {
		s.removed()
		return
	}

	err = s.store.AdoptExternal(snap.State.Credential)
	switch {
	case apperrors.Is(err, apperrors.ErrKeysUnavailable):
		log.Warn().Err(err).Str("origin", snap.Origin).Msg("Could not verify credential from another context, keeping current session")
	case err != nil:
		log.Info().Err(err).Str("origin", snap.Origin).Msg("Another context persisted an unusable credential")
		s.failClosed()
	}
}

// removed ends this context's session once the shared one is gone. A notice
// may be stale by the time it is handled, so the snapshot is read again after
// the state and a session persisted in between is left alone.
func (s *Synchronizer) removed() {
	state := s.store.State()
	if state.Credential == "" || state.IsLoggingOut {
		return
	}
	if s.sharedSessionPresent() {
		log.Debug().Msg("Stale removal notice, a session is persisted")
		return
	}
	log.Info().Msg("Session ended in another context")
	s.store.LogoutIfCurrent(state.Credential, session.LogoutExpired)
}

func (s *Synchronizer) sharedSessionPresent() bool {
	snap, err := s.store.ReadSnapshot()
	return err == nil && snap.State.IsAuthenticated && snap.State.Credential != ""
}

func (s *Synchronizer) failClosed() {
	s.store.LogoutIfCurrent(s.store.Credential(), session.LogoutExpired)
}
