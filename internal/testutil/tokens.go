// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

// Epoch is a whole-second instant used as "now" by tests that pin the clock.
var Epoch = time.Unix(1_700_000_000, 0)

// TokenSpec describes the claims of a minted test credential.
type TokenSpec struct {
	Subject   string
	TenantID  any
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     jwt.MapClaims
}

// MintToken signs spec with HS256. A zero ExpiresAt omits the exp claim.
func MintToken(t *testing.T, spec TokenSpec) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, spec.mapClaims()).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (spec TokenSpec) mapClaims() jwt.MapClaims {
	claims := jwt.MapClaims{}
	if spec.Subject != "" {
		claims["sub"] = spec.Subject
	}
	if spec.TenantID != nil {
		claims["tenantId"] = spec.TenantID
	}
	if spec.Roles != nil {
		claims["roles"] = spec.Roles
	}
	if !spec.IssuedAt.IsZero() {
		claims["iat"] = spec.IssuedAt.Unix()
	}
	if !spec.ExpiresAt.IsZero() {
		claims["exp"] = spec.ExpiresAt.Unix()
	}
	for k, v := range spec.Extra {
		claims[k] = v
	}
	return claims
}

// ValidToken returns a credential for tenant 42 that expires an hour after now.
func ValidToken(t *testing.T, now time.Time) string {
	t.Helper()
	return MintToken(t, TokenSpec{
		Subject:   "user-1",
		TenantID:  42,
		Roles:     []string{"USER"},
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
}

// ExpiredToken returns a well-formed credential that expired a minute before now.
func ExpiredToken(t *testing.T, now time.Time) string {
	t.Helper()
	return MintToken(t, TokenSpec{
		Subject:   "user-1",
		TenantID:  42,
		Roles:     []string{"USER"},
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Minute),
	})
}

// FixedClock returns a now func pinned to at. Advance moves it forward.
type FixedClock struct {
	mu sync.Mutex
	at time.Time
}

func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{at: at}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}
