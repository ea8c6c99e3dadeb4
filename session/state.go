package session

import (
	"encoding/json"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

const snapshotVersion = 1

// State is the session as seen by one context.
type State struct {
	Credential      string   // Raw bearer credential, empty when unauthenticated
	SubjectID       string   // Mirrors the credential's claims
	TenantID        int64    // Mirrors the credential's claims
	Roles           []string // Mirrors the credential's claims
	IsAuthenticated bool
	IsLoggingOut    bool // Re-entrancy guard, never persisted
}

func (s State) clone() State {
	if s.Roles != nil {
		s.Roles = append([]string(nil), s.Roles...)
	}
	return s
}

// Identity is the request context derived from the persisted snapshot.
type Identity struct {
	SubjectID string
	TenantID  int64
}

// PersistedState is the JSON shape of State inside a Snapshot.
type PersistedState struct {
	Credential      string   `json:"credential,omitempty"`
	SubjectID       string   `json:"subjectId,omitempty"`
	TenantID        int64    `json:"tenantId,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	IsAuthenticated bool     `json:"isAuthenticated"`
}

// Snapshot is the value stored under the snapshot key. Origin names the store
// instance that wrote it so a context can recognise its own writes.
type Snapshot struct {
	State   PersistedState `json:"state"`
	Version int            `json:"version"`
	Origin  string         `json:"origin,omitempty"`
}

func newSnapshot(s State, origin string) Snapshot {
	return Snapshot{
		State: PersistedState{
			Credential:      s.Credential,
			SubjectID:       s.SubjectID,
			TenantID:        s.TenantID,
			Roles:           s.Roles,
			IsAuthenticated: s.IsAuthenticated,
		},
		Version: snapshotVersion,
		Origin:  origin,
	}
}

func (s Snapshot) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", apperrors.Wrapf(err, "encode session snapshot")
	}
	return string(data), nil
}

// DecodeSnapshot parses a stored snapshot. Anything that is not a JSON
// object with a state member is reported as apperrors.ErrCorruptValue.
func DecodeSnapshot(raw string) (Snapshot, error) {
	var envelope struct {
		State *json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil || envelope.State == nil {
		return Snapshot{}, apperrors.Wrapf(apperrors.ErrCorruptValue, "session snapshot")
	}

	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, apperrors.Wrapf(apperrors.ErrCorruptValue, "session snapshot: %v", err)
	}
	return s, nil
}
