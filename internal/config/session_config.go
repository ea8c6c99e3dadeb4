package config

import "time"

type SessionConfig interface {
	GetSnapshotKey() string
	GetCredentialKey() string
	GetExpiryCheckInterval() time.Duration
	GetTokenIssuer() string
	GetJWKSURL() string
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSnapshotKey is the storage key holding the serialised session state
func (Session) GetSnapshotKey() string {
	return GetEnv("SESSION_SNAPSHOT_KEY", "auth-storage")
}

// GetCredentialKey is the storage key holding only the raw credential
func (Session) GetCredentialKey() string {
	return GetEnv("SESSION_CREDENTIAL_KEY", "token")
}

func (Session) GetExpiryCheckInterval() time.Duration {
	return GetEnvDuration("EXPIRY_CHECK_INTERVAL", 30*time.Second)
}

// GetTokenIssuer is the expected iss claim. Signature verification is only
// enabled when both the issuer and GetJWKSURL are set.
func (Session) GetTokenIssuer() string {
	return GetEnv("TOKEN_ISSUER", "")
}

func (Session) GetJWKSURL() string {
	return GetEnv("JWKS_URL", "")
}
