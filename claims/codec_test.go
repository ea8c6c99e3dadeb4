package claims_test

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/claims"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.com"

func TestCodec_Decode(t *testing.T) {
	now := testutil.Epoch
	codec := claims.NewCodec(claims.WithNowFunc(func() time.Time { return now }))

	t.Run("well formed", func(t *testing.T) {
		raw := testutil.MintToken(t, testutil.TokenSpec{
			Subject:   "user-7",
			TenantID:  42,
			Roles:     []string{"USER", "ADMIN"},
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		})

		c, err := codec.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, "user-7", c.SubjectID)
		require.Equal(t, int64(42), c.TenantID)
		require.Equal(t, []string{"USER", "ADMIN"}, c.Roles)
		require.True(t, c.HasRole("ADMIN"))
		require.Equal(t, now.Unix(), c.IssuedAt.Unix())
		require.Equal(t, now.Add(time.Hour).Unix(), c.ExpiresAt.Unix())
	})

	t.Run("tenant as numeric string and organization fallback", func(t *testing.T) {
		raw := testutil.MintToken(t, testutil.TokenSpec{
			Subject:   "user-7",
			TenantID:  "17",
			ExpiresAt: now.Add(time.Hour),
		})
		c, err := codec.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, int64(17), c.TenantID)
		require.Empty(t, c.Roles)

		raw = testutil.MintToken(t, testutil.TokenSpec{
			ExpiresAt: now.Add(time.Hour),
			Extra:     jwt.MapClaims{"organizationId": 9, "userId": "user-9"},
		})
		c, err = codec.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, int64(9), c.TenantID)
		require.Equal(t, "user-9", c.SubjectID)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "not-a-valid-credential", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.c2ln"} {
			_, err := codec.Decode(raw)
			require.Error(t, err, raw)

			var decodeErr *claims.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		}
	})

	t.Run("missing exp", func(t *testing.T) {
		raw := testutil.MintToken(t, testutil.TokenSpec{Subject: "user-1", TenantID: 1})
		_, err := codec.Decode(raw)
		require.Error(t, err)
		require.Contains(t, err.Error(), "missing exp claim")
	})

	t.Run("fractional tenant", func(t *testing.T) {
		raw := testutil.MintToken(t, testutil.TokenSpec{TenantID: 1.5, ExpiresAt: now.Add(time.Hour)})
		_, err := codec.Decode(raw)
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid tenant claim")
	})
}

func TestCodec_IsExpired(t *testing.T) {
	now := testutil.Epoch
	codec := claims.NewCodec(claims.WithNowFunc(func() time.Time { return now }))

	t.Run("exp equal to now is expired", func(t *testing.T) {
		require.True(t, codec.IsExpired(claims.Claims{ExpiresAt: now}))
	})

	t.Run("exp one second ahead is valid", func(t *testing.T) {
		require.False(t, codec.IsExpired(claims.Claims{ExpiresAt: now.Add(time.Second)}))
	})

	t.Run("sub-second remainder of now does not extend validity", func(t *testing.T) {
		later := claims.NewCodec(claims.WithNowFunc(func() time.Time { return now.Add(500 * time.Millisecond) }))
		require.True(t, later.IsExpired(claims.Claims{ExpiresAt: now}))
	})
}

func TestCodec_Validate(t *testing.T) {
	now := testutil.Epoch
	codec := claims.NewCodec(claims.WithNowFunc(func() time.Time { return now }))

	c, err := codec.Validate(testutil.ValidToken(t, now))
	require.NoError(t, err)
	require.Equal(t, int64(42), c.TenantID)

	c, err = codec.Validate(testutil.ExpiredToken(t, now))
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	require.Equal(t, "user-1", c.SubjectID)

	_, err = codec.Validate("garbage")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestCodec_WithVerifier(t *testing.T) {
	now := testutil.Epoch
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	codec := claims.NewCodec(
		claims.WithNowFunc(func() time.Time { return now }),
		claims.WithVerifier(claims.NewStaticVerifier(testIssuer, &key.PublicKey)),
	)

	sign := func(t *testing.T, k *rsa.PrivateKey, iss string) string {
		t.Helper()
		raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":      iss,
			"sub":      "user-1",
			"tenantId": 42,
			"exp":      now.Add(time.Hour).Unix(),
		}).SignedString(k)
		require.NoError(t, err)
		return raw
	}

	t.Run("signed by trusted key", func(t *testing.T) {
		c, err := codec.Decode(sign(t, key, testIssuer))
		require.NoError(t, err)
		require.Equal(t, int64(42), c.TenantID)
	})

	t.Run("signed by unknown key", func(t *testing.T) {
		_, err := codec.Decode(sign(t, otherKey, testIssuer))
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		require.Contains(t, err.Error(), "signature verification failed")
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := codec.Decode(sign(t, key, "https://elsewhere.example.com"))
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("symmetric token rejected", func(t *testing.T) {
		_, err := codec.Decode(testutil.ValidToken(t, now))
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})

	t.Run("expired but authentic still decodes", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss": testIssuer,
			"sub": "user-1",
			"exp": now.Add(-time.Hour).Unix(),
		}).SignedString(key)
		require.NoError(t, err)

		c, err := codec.Decode(raw)
		require.NoError(t, err)
		require.True(t, codec.IsExpired(c))
	})
}

func TestCodec_WithRemoteKeys(t *testing.T) {
	now := testutil.Epoch
	jwks := testutil.NewJWKS(t)
	spec := testutil.TokenSpec{Subject: "user-1", TenantID: 42, ExpiresAt: now.Add(time.Hour)}

	newCodec := func() *claims.Codec {
		return claims.NewCodec(
			claims.WithNowFunc(func() time.Time { return now }),
			claims.WithVerifier(claims.NewRemoteVerifier(testutil.Issuer, jwks.URL(), nil)),
		)
	}

	t.Run("keys fetched and cached", func(t *testing.T) {
		codec := newCodec()
		before := jwks.Fetches()
		for i := 0; i < 2; i++ {
			c, err := codec.Decode(jwks.Sign(t, spec))
			require.NoError(t, err)
			require.Equal(t, int64(42), c.TenantID)
		}
		require.Equal(t, before+1, jwks.Fetches())
	})

	t.Run("endpoint outage is not a decode failure", func(t *testing.T) {
		jwks.SetStatus(http.StatusServiceUnavailable)
		defer jwks.SetStatus(0)

		_, err := newCodec().Validate(jwks.Sign(t, spec))
		require.ErrorIs(t, err, apperrors.ErrKeysUnavailable)
		require.NotErrorIs(t, err, apperrors.ErrInvalidToken)
		var decodeErr *claims.DecodeError
		require.False(t, apperrors.As(err, &decodeErr))
	})

	t.Run("forged signature with keys available", func(t *testing.T) {
		forged := testutil.NewJWKS(t).Sign(t, spec)
		_, err := newCodec().Decode(forged)
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		require.NotErrorIs(t, err, apperrors.ErrKeysUnavailable)
	})
}
