// Package login obtains credentials from the issuance endpoint and hands them
// to the session store.
package login

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenSetter adopts a freshly issued credential. *session.Store satisfies it.
type TokenSetter interface {
	SetToken(credential string) error
}

type Settings struct {
	BaseURL          string
	ClientID         string
	ClientSecret     string
	TokenPath        string
	TenantSwitchPath string
}

type Client struct {
	settings   Settings
	oauth      *oauth2.Config
	session    TokenSetter
	httpClient *http.Client // issuance, never carries a credential
	apiClient  *http.Client // authenticated pipeline
}

type ClientOption func(*Client)

// WithHTTPClient sets the client used against the issuance endpoint.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(l *Client) {
		l.httpClient = c
	}
}

// WithAPIClient sets the authenticated client used for tenant switches.
func WithAPIClient(c *http.Client) ClientOption {
	return func(l *Client) {
		l.apiClient = c
	}
}

func NewClient(settings Settings, session TokenSetter, options ...ClientOption) *Client {
	base := strings.TrimRight(settings.BaseURL, "/")
	c := &Client{
		settings: settings,
		session:  session,
		oauth: &oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + settings.TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: http.DefaultClient,
		apiClient:  http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Login exchanges subject credentials for a bearer credential and starts a
// session with it.
func (c *Client) Login(ctx context.Context, subject, secret string) (TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.PasswordCredentialsToken(ctx, subject, secret)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if apperrors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			switch retrieveErr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				return TokenResponse{}, apperrors.Wrapf(apperrors.ErrUnauthorized, "Client.Login %s", retrieveErr.ErrorCode)
			}
		}
		return TokenResponse{}, apperrors.Wrapf(err, "Client.Login")
	}

	resp := fromOAuthToken(tok)
	if err := c.session.SetToken(resp.Credential); err != nil {
		return resp, apperrors.Wrapf(err, "Client.Login")
	}
	log.Info().Str("subject", subject).Int64("tenant", resp.TenantID).Msg("Logged in")
	return resp, nil
}

// SwitchTenant asks the backend for a credential scoped to tenantID and
// replaces the session with it.
func (c *Client) SwitchTenant(ctx context.Context, tenantID int64) (TokenResponse, error) {
	body, err := json.Marshal(map[string]int64{"tenantId": tenantID})
	if err != nil {
		return TokenResponse{}, apperrors.Wrapf(err, "Client.SwitchTenant")
	}
	url := strings.TrimRight(c.settings.BaseURL, "/") + c.settings.TenantSwitchPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return TokenResponse{}, apperrors.Wrapf(err, "Client.SwitchTenant")
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.apiClient.Do(req)
	if err != nil {
		return TokenResponse{}, apperrors.Wrapf(err, "Client.SwitchTenant")
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= http.StatusBadRequest {
		return TokenResponse{}, apperrors.Wrapf(apperrors.ErrRequestFailed, "Client.SwitchTenant status %d", httpResp.StatusCode)
	}

	var resp TokenResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return TokenResponse{}, apperrors.Wrapf(err, "Client.SwitchTenant decode")
	}
	if resp.Credential == "" {
		return TokenResponse{}, apperrors.Wrapf(apperrors.ErrInvalidToken, "Client.SwitchTenant empty credential")
	}
	if err := c.session.SetToken(resp.Credential); err != nil {
		return resp, apperrors.Wrapf(err, "Client.SwitchTenant")
	}
	log.Info().Int64("tenant", tenantID).Msg("Switched tenant")
	return resp, nil
}
