package claims

import (
	"crypto"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// NewStaticVerifier verifies signatures against a fixed set of public keys.
func NewStaticVerifier(issuer string, keys ...crypto.PublicKey) *oidc.IDTokenVerifier {
	return oidc.NewVerifier(issuer, &oidc.StaticKeySet{PublicKeys: keys}, verifierConfig())
}

// NewRemoteVerifier fetches and caches keys from the issuer's JWKS endpoint
// using client.
func NewRemoteVerifier(issuer, jwksURL string, client *http.Client) *oidc.IDTokenVerifier {
	return oidc.NewVerifier(issuer, NewRemoteKeySet(jwksURL, client), verifierConfig())
}

// The client only needs to know a credential is authentic; its audience is the
// API and expiry is checked separately with second granularity.
func verifierConfig() *oidc.Config {
	return &oidc.Config{
		SkipClientIDCheck:    true,
		SkipExpiryCheck:      true,
		SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
	}
}
