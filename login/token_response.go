package login

import (
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"golang.org/x/oauth2"
)

// TokenResponse is the issuance and tenant-switch response body.
type TokenResponse struct {
	// Credential is the bearer credential (a JWT) handed to the session store.
	Credential string `json:"access_token"`

	// TokenType is how the credential is presented, normally "bearer".
	TokenType string `json:"token_type,omitempty"`

	// ExpiresInSeconds is a hint only: the credential's exp claim is authoritative.
	ExpiresInSeconds int64 `json:"expires_in,omitempty"`

	// TenantID is the tenant the credential was issued for.
	TenantID int64 `json:"tenant_id,omitempty"`
}

func fromOAuthToken(tok *oauth2.Token) TokenResponse {
	return TokenResponse{
		Credential:       tok.AccessToken,
		TokenType:        tok.TokenType,
		ExpiresInSeconds: tok.ExpiresIn,
		TenantID:         extraInt64(tok.Extra("tenant_id")),
	}
}

func extraInt64(v any) int64 {
	if v == nil {
		return 0
	}
	n, err := utils.ToInt64(v)
	if err != nil {
		return 0
	}
	return n
}
