// Package session owns the single source of truth for "who is logged in, in
// which tenant, with which roles" for one context, and keeps it persisted so
// sibling contexts sharing the same storage can follow it.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/claims"
	"github.com/jrsteele09/go-auth-client/events"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/notify"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSnapshotKey   = "auth-storage"
	DefaultCredentialKey = "token"
)

// Store is the only writer of session state and of the two persisted keys.
// Mutations are serialised; notifications and events are delivered after the
// lock is released, so listeners may call back into the Store.
type Store struct {
	mu    sync.Mutex
	state State

	storage       storage.Storage
	codec         *claims.Codec
	notifier      notify.Notifier
	logoutEvents  *events.Channel[LogoutEvent]
	snapshotKey   string
	credentialKey string
	instanceID    string
}

type StoreOption func(*Store)

func WithCodec(codec *claims.Codec) StoreOption {
	return func(s *Store) {
		s.codec = codec
	}
}

func WithNotifier(notifier notify.Notifier) StoreOption {
	return func(s *Store) {
		s.notifier = notifier
	}
}

// WithLogoutChannel shares a logout channel between the store and its listeners.
func WithLogoutChannel(ch *events.Channel[LogoutEvent]) StoreOption {
	return func(s *Store) {
		s.logoutEvents = ch
	}
}

func WithKeys(snapshotKey, credentialKey string) StoreOption {
	return func(s *Store) {
		s.snapshotKey = snapshotKey
		s.credentialKey = credentialKey
	}
}

func WithInstanceID(id string) StoreOption {
	return func(s *Store) {
		s.instanceID = id
	}
}

// New builds an unauthenticated Store over store. Use Open to also rehydrate.
func New(store storage.Storage, options ...StoreOption) *Store {
	s := &Store{
		storage:       store,
		snapshotKey:   DefaultSnapshotKey,
		credentialKey: DefaultCredentialKey,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.codec == nil {
		s.codec = claims.NewCodec()
	}
	if s.notifier == nil {
		s.notifier = notify.LogNotifier{}
	}
	if s.logoutEvents == nil {
		s.logoutEvents = events.NewChannel[LogoutEvent]("logout")
	}
	if s.instanceID == "" {
		s.instanceID = uuid.NewString()
	}
	return s
}

// Open builds a Store and rehydrates it from storage.
func Open(store storage.Storage, options ...StoreOption) (*Store, error) {
	s := New(store, options...)
	if err := s.Rehydrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rehydrate loads the persisted snapshot and immediately re-validates it.
// A missing or unreadable snapshot leaves the store unauthenticated.
func (s *Store) Rehydrate() error {
	snap, err := s.ReadSnapshot()
	if apperrors.Is(err, apperrors.ErrKeyNotFound) {
		return nil
	}
	if apperrors.Is(err, apperrors.ErrCorruptValue) {
		log.Warn().Err(err).Str("key", s.snapshotKey).Msg("Ignoring unreadable session snapshot")
		return nil
	}
	if err != nil {
		return apperrors.Wrapf(err, "Store.Rehydrate")
	}
	if snap.State.Credential == "" {
		return nil
	}

	s.mu.Lock()
	s.state = State{
		Credential:      snap.State.Credential,
		SubjectID:       snap.State.SubjectID,
		TenantID:        snap.State.TenantID,
		Roles:           snap.State.Roles,
		IsAuthenticated: snap.State.IsAuthenticated,
	}
	if c, err := s.codec.Decode(snap.State.Credential); err == nil {
		s.state.SubjectID, s.state.TenantID, s.state.Roles = c.SubjectID, c.TenantID, c.Roles
		s.state.IsAuthenticated = true
	}
	s.mu.Unlock()

	s.CheckExpiration()
	return nil
}

// SetToken adopts credential after login or a tenant switch. A credential
// that does not decode or is already expired is never adopted: the store logs
// out instead and the cause is returned. When the signing keys cannot be
// fetched the session is left exactly as it was and
// apperrors.ErrKeysUnavailable is returned.
func (s *Store) SetToken(credential string) error {
	c, err := s.codec.Validate(credential)
	if apperrors.Is(err, apperrors.ErrKeysUnavailable) {
		log.Warn().Err(err).Msg("Could not verify credential, session unchanged")
		return err
	}
	if err != nil {
		reason := LogoutUnauthorized
		if apperrors.Is(err, apperrors.ErrTokenExpired) {
			reason = LogoutExpired
		}
		log.Warn().Err(err).Str("reason", string(reason)).Msg("Rejected credential")
		s.endSession(logoutRequest{reason: reason, rejected: true})
		return err
	}

	s.mu.Lock()
	s.state = State{
		Credential:      credential,
		SubjectID:       c.SubjectID,
		TenantID:        c.TenantID,
		Roles:           c.Roles,
		IsAuthenticated: true,
	}
	err = s.persistLocked()
	s.mu.Unlock()

	log.Info().Str("subject", c.SubjectID).Int64("tenant", c.TenantID).Msg("Session established")
	return err
}

// AdoptExternal takes over a credential another context persisted. Only
// memory changes: the credential is already in storage.
func (s *Store) AdoptExternal(credential string) error {
	c, err := s.codec.Validate(credential)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Credential == credential && s.state.IsAuthenticated {
		return nil
	}
	s.state = State{
		Credential:      credential,
		SubjectID:       c.SubjectID,
		TenantID:        c.TenantID,
		Roles:           c.Roles,
		IsAuthenticated: true,
	}
	log.Info().Str("subject", c.SubjectID).Int64("tenant", c.TenantID).Msg("Adopted session from another context")
	return nil
}

// Logout ends the session. Triggers that arrive while a logout is running, or
// once there is no session left in memory or storage, are no-ops, so a burst
// of triggers produces one notification and one event. IsLoggingOut is only
// true while the logout's own listeners run.
func (s *Store) Logout(reason LogoutReason) {
	s.endSession(logoutRequest{reason: reason})
}

// LogoutIfCurrent ends the session only if credential is still the one held
// in memory, so a session that replaced it is left alone.
func (s *Store) LogoutIfCurrent(credential string, reason LogoutReason) {
	if credential == "" {
		return
	}
	s.endSession(logoutRequest{reason: reason, credential: credential})
}

type logoutRequest struct {
	reason LogoutReason

	// credential, when set, must still be the in-memory credential.
	credential string

	// rejected marks a refused login attempt, which is always reported even
	// when there was no session to end.
	rejected bool
}

func (s *Store) endSession(req logoutRequest) {
	reason := req.reason
	if !reason.Valid() {
		log.Warn().Str("reason", string(reason)).Msg("Unknown logout reason, treating as unauthorized")
		reason = LogoutUnauthorized
	}

	s.mu.Lock()
	switch {
	case s.state.IsLoggingOut:
		s.mu.Unlock()
		log.Debug().Str("reason", string(reason)).Msg("Logout already in progress")
		return
	case req.credential != "" && s.state.Credential != req.credential:
		s.mu.Unlock()
		log.Debug().Str("reason", string(reason)).Msg("Session was replaced, logout skipped")
		return
	case !req.rejected && !s.hasSessionLocked():
		s.mu.Unlock()
		log.Debug().Str("reason", string(reason)).Msg("No session to end")
		return
	}
	s.state = State{IsLoggingOut: true}
	s.eraseLocked()
	s.mu.Unlock()

	log.Info().Str("reason", string(reason)).Msg("Session ended")
	s.notifier.Notify(reason.Notification())
	s.logoutEvents.Emit(LogoutEvent{Reason: reason})

	s.mu.Lock()
	s.state.IsLoggingOut = false
	s.mu.Unlock()
}

// hasSessionLocked also looks at storage: a sibling may have persisted a
// credential this context never adopted. A read failure counts as a session
// so the erase is still attempted.
func (s *Store) hasSessionLocked() bool {
	if s.state.Credential != "" || s.state.IsAuthenticated {
		return true
	}
	for _, key := range []string{s.credentialKey, s.snapshotKey} {
		_, err := s.storage.Get(key)
		if !apperrors.Is(err, apperrors.ErrKeyNotFound) {
			return true
		}
	}
	return false
}

// CheckExpiration logs out when the current credential has expired. It is
// the proactive check used by rehydration, the request pipeline and
// periodic watches. It never logs out while the signing keys are unavailable.
func (s *Store) CheckExpiration() {
	s.mu.Lock()
	credential, guard := s.state.Credential, s.state.IsLoggingOut
	s.mu.Unlock()
	if credential == "" || guard {
		return
	}

	_, err := s.codec.Validate(credential)
	switch {
	case err == nil:
		return
	case apperrors.Is(err, apperrors.ErrKeysUnavailable):
		log.Warn().Err(err).Msg("Skipping expiry check")
	case apperrors.Is(err, apperrors.ErrTokenExpired):
		s.LogoutIfCurrent(credential, LogoutExpired)
	default:
		s.LogoutIfCurrent(credential, LogoutUnauthorized)
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAuthenticated
}

func (s *Store) IsLoggingOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsLoggingOut
}

func (s *Store) SubjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SubjectID
}

func (s *Store) TenantID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TenantID
}

func (s *Store) Roles() []string {
	return s.State().Roles
}

func (s *Store) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Credential
}

func (s *Store) LogoutEvents() *events.Channel[LogoutEvent] {
	return s.logoutEvents
}

func (s *Store) Codec() *claims.Codec {
	return s.codec
}

func (s *Store) InstanceID() string {
	return s.instanceID
}

func (s *Store) SnapshotKey() string {
	return s.snapshotKey
}

// ReadSnapshot returns the snapshot currently in storage, whoever wrote it.
func (s *Store) ReadSnapshot() (Snapshot, error) {
	raw, err := s.storage.Get(s.snapshotKey)
	if err != nil {
		return Snapshot{}, err
	}
	return DecodeSnapshot(raw)
}

// PersistedCredential reads the raw credential key directly, independent of
// this Store's in-memory state.
func (s *Store) PersistedCredential() (string, bool) {
	credential, err := s.storage.Get(s.credentialKey)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrKeyNotFound) {
			log.Err(err).Str("key", s.credentialKey).Msg("Failed to read persisted credential")
		}
		return "", false
	}
	if credential == "" {
		return "", false
	}
	return credential, true
}

// PersistedIdentity returns subject and tenant from the persisted snapshot.
func (s *Store) PersistedIdentity() (Identity, error) {
	snap, err := s.ReadSnapshot()
	if err != nil {
		return Identity{}, err
	}
	if !snap.State.IsAuthenticated {
		return Identity{}, apperrors.ErrNoCredential
	}
	return Identity{SubjectID: snap.State.SubjectID, TenantID: snap.State.TenantID}, nil
}

// persistLocked writes the credential key first so a sibling reacting to the
// snapshot change can already read it.
func (s *Store) persistLocked() error {
	encoded, err := newSnapshot(s.state, s.instanceID).Encode()
	if err != nil {
		return err
	}
	if err := s.storage.Set(s.credentialKey, s.state.Credential); err != nil {
		log.Err(err).Str("key", s.credentialKey).Msg("Failed to persist credential")
		return apperrors.Wrapf(err, "Store.persist credential")
	}
	if err := s.storage.Set(s.snapshotKey, encoded); err != nil {
		log.Err(err).Str("key", s.snapshotKey).Msg("Failed to persist session snapshot")
		return apperrors.Wrapf(err, "Store.persist snapshot")
	}
	return nil
}

func (s *Store) eraseLocked() {
	if err := s.storage.Remove(s.credentialKey); err != nil {
		log.Err(err).Str("key", s.credentialKey).Msg("Failed to erase credential")
	}
	if err := s.storage.Remove(s.snapshotKey); err != nil {
		log.Err(err).Str("key", s.snapshotKey).Msg("Failed to erase session snapshot")
	}
}
