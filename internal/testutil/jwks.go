package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	Issuer    = "https://auth.example.com"
	jwksKeyID = "test-key"
)

// JWKS signs RS256 credentials and serves the matching public key from a
// local endpoint. SetStatus makes the endpoint answer with an error instead.
type JWKS struct {
	key     *rsa.PrivateKey
	server  *httptest.Server
	status  atomic.Int32
	fetches atomic.Int32
}

func NewJWKS(t *testing.T) *JWKS {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &key.PublicKey,
		KeyID:     jwksKeyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}})
	require.NoError(t, err)

	j := &JWKS{key: key}
	j.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		j.fetches.Add(1)
		if status := int(j.status.Load()); status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(j.server.Close)
	return j
}

func (j *JWKS) URL() string {
	return j.server.URL
}

// SetStatus makes every later fetch fail with status. Zero restores the keys.
func (j *JWKS) SetStatus(status int) {
	j.status.Store(int32(status))
}

func (j *JWKS) Fetches() int {
	return int(j.fetches.Load())
}

// Sign mints spec as an RS256 credential from Issuer.
func (j *JWKS) Sign(t *testing.T, spec TokenSpec) string {
	t.Helper()
	claims := spec.mapClaims()
	claims["iss"] = Issuer
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = jwksKeyID
	signed, err := token.SignedString(j.key)
	require.NoError(t, err)
	return signed
}
