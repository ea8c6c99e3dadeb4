package main

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/audit"
	"github.com/jrsteele09/go-auth-client/claims"
	"github.com/jrsteele09/go-auth-client/crosstab"
	"github.com/jrsteele09/go-auth-client/events"
	"github.com/jrsteele09/go-auth-client/internal/config"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/login"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/rs/zerolog/log"
)

// app is one client context: every process started on the same data folder
// behaves like another tab of the same session.
type app struct {
	cfg       config.Config
	store     *session.Store
	sync      *crosstab.Synchronizer
	notFound  *events.Channel[transport.ResourceNotFoundEvent]
	apiClient *http.Client
	login     *login.Client
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	durable, changes, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	codec := newCodec(cfg, &http.Client{Timeout: cfg.GetRequestTimeout(), Transport: base})
	store, err := session.Open(durable,
		session.WithCodec(codec),
		session.WithKeys(cfg.GetSnapshotKey(), cfg.GetCredentialKey()),
	)
	if err != nil {
		return nil, apperrors.Wrapf(err, "newApp open session")
	}

	baseURL := strings.TrimRight(cfg.GetBaseURL(), "/")
	publicPaths := cfg.GetPublicPaths()

	// Audit records carry the credential but bypass classification, so a
	// failing collector never notifies or logs the user out.
	auditClient := &http.Client{
		Timeout:   cfg.GetRequestTimeout(),
		Transport: transport.NewAuthenticator(base, store, codec, publicPaths),
	}
	rps := cfg.GetAuditRatePerSecond()
	sink := audit.NewHTTPSink(auditClient, baseURL+cfg.GetAuditPath(),
		audit.WithRateLimit(rps, int(math.Max(1, math.Ceil(rps)))))

	notFound := events.NewChannel[transport.ResourceNotFoundEvent]("resource-not-found")
	apiClient := &http.Client{
		Timeout: cfg.GetRequestTimeout(),
		Transport: transport.Chain(base,
			transport.Classify(store,
				transport.WithAuditSink(sink),
				transport.WithNotFoundChannel(notFound),
				transport.WithResourceTypes(cfg.GetResourceTypes()),
				transport.WithPublicPaths(publicPaths),
			),
			transport.Authenticate(store, codec, publicPaths),
		),
	}

	loginClient := login.NewClient(login.Settings{
		BaseURL:          baseURL,
		ClientID:         cfg.GetClientID(),
		ClientSecret:     cfg.GetClientSecret(),
		TokenPath:        cfg.GetTokenPath(),
		TenantSwitchPath: cfg.GetTenantSwitchPath(),
	}, store,
		login.WithHTTPClient(&http.Client{Timeout: cfg.GetRequestTimeout(), Transport: base}),
		login.WithAPIClient(apiClient),
	)

	return &app{
		cfg:       cfg,
		store:     store,
		sync:      crosstab.New(store, changes),
		notFound:  notFound,
		apiClient: apiClient,
		login:     loginClient,
	}, nil
}

type changeStorage interface {
	storage.Storage
	storage.ChangeSource
}

func openStorage(cfg config.EnvConfig) (storage.Storage, storage.ChangeSource, error) {
	file, err := storage.NewFile(cfg.GetDataFolder())
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "openStorage")
	}
	var durable changeStorage = file

	key, err := cfg.GetSealKey()
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "openStorage")
	}
	if key != nil {
		sealed, err := storage.NewSealed(file, key)
		if err != nil {
			return nil, nil, apperrors.Wrapf(err, "openStorage")
		}
		durable = sealed
	}
	log.Debug().Str("dir", file.Dir()).Bool("sealed", key != nil).Msg("Session storage opened")
	return durable, durable, nil
}

func newCodec(cfg config.SessionConfig, client *http.Client) *claims.Codec {
	issuer, jwksURL := cfg.GetTokenIssuer(), cfg.GetJWKSURL()
	if issuer == "" || jwksURL == "" {
		return claims.NewCodec()
	}
	log.Debug().Str("issuer", issuer).Str("jwks", jwksURL).Msg("Credential signature verification enabled")
	return claims.NewCodec(claims.WithVerifier(claims.NewRemoteVerifier(issuer, jwksURL, client)))
}
