package claims

import (
	"context"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

const (
	claimSubject      = "sub"
	claimUserID       = "userId"
	claimTenantID     = "tenantId"
	claimOrganization = "organizationId"
	claimRoles        = "roles"

	defaultVerifyTimeout = 5 * time.Second
)

// Codec turns credentials into Claims. The zero value is not usable, build one
// with NewCodec. A Codec is safe for concurrent use.
type Codec struct {
	nowFunc       func() time.Time
	verifier      *oidc.IDTokenVerifier
	verifyTimeout time.Duration
}

type CodecOption func(*Codec)

func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// WithVerifier makes Decode reject credentials whose signature does not
// verify. Expiry is still decided by IsExpired.
func WithVerifier(verifier *oidc.IDTokenVerifier) CodecOption {
	return func(c *Codec) {
		c.verifier = verifier
	}
}

func WithVerifyTimeout(timeout time.Duration) CodecOption {
	return func(c *Codec) {
		c.verifyTimeout = timeout
	}
}

func NewCodec(options ...CodecOption) *Codec {
	c := &Codec{}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	if c.verifyTimeout == 0 {
		c.verifyTimeout = defaultVerifyTimeout
	}
	return c
}

// Now returns the codec's notion of the current time.
func (c *Codec) Now() time.Time {
	return c.nowFunc()
}

// Decode parses credential. The signature is only checked when a verifier was
// configured. If the verifier's keys cannot be fetched the error wraps
// apperrors.ErrKeysUnavailable and is not a DecodeError.
func (c *Codec) Decode(credential string) (Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Claims{}, &DecodeError{Reason: "empty credential"}
	}

	if c.verifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.verifyTimeout)
		defer cancel()
		ctx, outage := withKeyOutage(ctx)
		if _, err := c.verifier.Verify(ctx, credential); err != nil {
			if outage.err != nil {
				return Claims{}, outage.err
			}
			return Claims{}, &DecodeError{Reason: "signature verification failed", Err: err}
		}
	}

	token, _, err := jwt.NewParser().ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return Claims{}, &DecodeError{Reason: "malformed token", Err: err}
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, &DecodeError{Reason: "error extracting claims"}
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, &DecodeError{Reason: "invalid exp claim", Err: err}
	}
	if exp == nil {
		return Claims{}, &DecodeError{Reason: "missing exp claim"}
	}

	var issuedAt time.Time
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		issuedAt = iat.Time
	}

	subject, _ := mc.GetSubject()
	if subject == "" {
		subject, _ = mc[claimUserID].(string)
	}

	tenantID, err := tenantFromClaims(mc)
	if err != nil {
		return Claims{}, &DecodeError{Reason: "invalid tenant claim", Err: err}
	}

	return Claims{
		SubjectID: subject,
		TenantID:  tenantID,
		Roles:     rolesFromClaims(mc),
		IssuedAt:  issuedAt,
		ExpiresAt: exp.Time,
	}, nil
}

// IsExpired compares at second granularity; a credential whose exp equals now
// is already expired.
func (c *Codec) IsExpired(claims Claims) bool {
	return c.nowFunc().Unix() >= claims.ExpiresAt.Unix()
}

// Validate decodes credential and rejects it when expired. The claims are
// returned alongside apperrors.ErrTokenExpired so callers can still log them.
func (c *Codec) Validate(credential string) (Claims, error) {
	claims, err := c.Decode(credential)
	if err != nil {
		return Claims{}, err
	}
	if c.IsExpired(claims) {
		return claims, apperrors.ErrTokenExpired
	}
	return claims, nil
}

func tenantFromClaims(mc jwt.MapClaims) (int64, error) {
	raw, ok := mc[claimTenantID]
	if !ok {
		if raw, ok = mc[claimOrganization]; !ok {
			return 0, nil
		}
	}

	if raw == nil {
		return 0, nil
	}
	id, err := utils.ToInt64(raw)
	if err != nil {
		return 0, apperrors.Wrapf(err, "tenant id")
	}
	return id, nil
}

func rolesFromClaims(mc jwt.MapClaims) []string {
	switch v := mc[claimRoles].(type) {
	case []any:
		return utils.ToStringSlice(v)
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	default:
		return []string{}
	}
}
