package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-jose/go-jose/v4"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

const maxJWKSBytes = 1 << 20

var supportedAlgorithms = []jose.SignatureAlgorithm{jose.RS256, jose.ES256}

// RemoteKeySet is an oidc.KeySet backed by a JWKS endpoint. Keys are cached
// and refetched when no cached key verifies a credential. A failed fetch is
// reported as apperrors.ErrKeysUnavailable, never as a bad signature.
type RemoteKeySet struct {
	jwksURL string
	client  *http.Client

	mu   sync.RWMutex
	keys []jose.JSONWebKey
}

func NewRemoteKeySet(jwksURL string, client *http.Client) *RemoteKeySet {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteKeySet{jwksURL: jwksURL, client: client}
}

// VerifySignature implements oidc.KeySet.
func (r *RemoteKeySet) VerifySignature(ctx context.Context, raw string) ([]byte, error) {
	jws, err := jose.ParseSigned(raw, supportedAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("malformed jws: %w", err)
	}
	if payload, ok := verifyWith(jws, r.cached()); ok {
		return payload, nil
	}

	keys, err := r.fetch(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", apperrors.ErrKeysUnavailable, r.jwksURL, err)
		reportKeyOutage(ctx, err)
		return nil, err
	}
	if payload, ok := verifyWith(jws, keys); ok {
		return payload, nil
	}
	return nil, fmt.Errorf("no key in %s verifies the signature", r.jwksURL)
}

func (r *RemoteKeySet) cached() []jose.JSONWebKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys
}

func (r *RemoteKeySet) fetch(ctx context.Context) ([]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return nil, fmt.Errorf("parse keys: %w", err)
	}

	r.mu.Lock()
	r.keys = set.Keys
	r.mu.Unlock()
	return set.Keys, nil
}

func verifyWith(jws *jose.JSONWebSignature, keys []jose.JSONWebKey) ([]byte, bool) {
	kid := ""
	if len(jws.Signatures) > 0 {
		kid = jws.Signatures[0].Header.KeyID
	}
	for _, key := range keys {
		if kid != "" && key.KeyID != "" && key.KeyID != kid {
			continue
		}
		if payload, err := jws.Verify(key.Key); err == nil {
			return payload, true
		}
	}
	return nil, false
}

// The oidc verifier flattens key set errors into text, so a key outage is
// handed back to Decode through the context instead.
type keyOutageKey struct{}

type keyOutage struct {
	err error
}

func withKeyOutage(ctx context.Context) (context.Context, *keyOutage) {
	outage := &keyOutage{}
	return context.WithValue(ctx, keyOutageKey{}, outage), outage
}

func reportKeyOutage(ctx context.Context, err error) {
	if outage, ok := ctx.Value(keyOutageKey{}).(*keyOutage); ok {
		outage.err = err
	}
}
