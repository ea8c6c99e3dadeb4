package login_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/testutil"
	"github.com/jrsteele09/go-auth-client/login"
	"github.com/jrsteele09/go-auth-client/notify"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/stretchr/testify/require"
)

type authServer struct {
	t          *testing.T
	credential string
	switched   string
}

func (s *authServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/login":
		require.NoError(s.t, r.ParseForm())
		if r.PostForm.Get("grant_type") != "password" ||
			r.PostForm.Get("client_id") != "auth-client" ||
			r.PostForm.Get("username") != "alice" ||
			r.PostForm.Get("password") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": s.credential,
			"token_type":   "bearer",
			"expires_in":   3600,
			"tenant_id":    42,
		})
	case "/auth/switch-organization":
		if r.Header.Get("Authorization") != "Bearer "+s.credential {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			TenantID int64 `json:"tenantId"`
		}
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(s.t, int64(7), body.TenantID)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": s.switched,
			"token_type":   "bearer",
			"expires_in":   3600,
			"tenant_id":    body.TenantID,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setupLogin(t *testing.T) (*login.Client, *session.Store, *authServer) {
	t.Helper()
	now := time.Now()
	as := &authServer{
		t:          t,
		credential: testutil.ValidToken(t, now),
		switched: testutil.MintToken(t, testutil.TokenSpec{
			Subject:   "user-1",
			TenantID:  7,
			Roles:     []string{"ADMIN"},
			ExpiresAt: now.Add(time.Hour),
		}),
	}
	srv := httptest.NewServer(as)
	t.Cleanup(srv.Close)

	store := session.New(storage.NewMemory(), session.WithNotifier(notify.Discard))
	publicPaths := []string{"/auth/login"}
	apiClient := &http.Client{
		Transport: transport.Chain(srv.Client().Transport,
			transport.Classify(store, transport.WithClassifierNotifier(notify.Discard), transport.WithPublicPaths(publicPaths)),
			transport.Authenticate(store, store.Codec(), publicPaths),
		),
	}
	client := login.NewClient(login.Settings{
		BaseURL:          srv.URL,
		ClientID:         "auth-client",
		TokenPath:        "/auth/login",
		TenantSwitchPath: "/auth/switch-organization",
	}, store, login.WithHTTPClient(srv.Client()), login.WithAPIClient(apiClient))
	return client, store, as
}

func TestClient_Login(t *testing.T) {
	client, store, as := setupLogin(t)

	resp, err := client.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, as.credential, resp.Credential)
	require.Equal(t, int64(42), resp.TenantID)

	require.True(t, store.IsAuthenticated())
	require.Equal(t, int64(42), store.TenantID())
	persisted, ok := store.PersistedCredential()
	require.True(t, ok)
	require.Equal(t, as.credential, persisted)
}

func TestClient_LoginRejected(t *testing.T) {
	client, store, _ := setupLogin(t)

	_, err := client.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.False(t, store.IsAuthenticated())
}

func TestClient_SwitchTenant(t *testing.T) {
	client, store, as := setupLogin(t)
	_, err := client.Login(context.Background(), "alice", "s3cret")
	require.NoError(t, err)

	resp, err := client.SwitchTenant(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), resp.TenantID)
	require.Equal(t, as.switched, store.Credential())
	require.Equal(t, int64(7), store.TenantID())
	require.Equal(t, []string{"ADMIN"}, store.Roles())

	identity, err := store.PersistedIdentity()
	require.NoError(t, err)
	require.Equal(t, int64(7), identity.TenantID)
}

func TestClient_SwitchTenantWithoutSession(t *testing.T) {
	client, store, _ := setupLogin(t)

	_, err := client.SwitchTenant(context.Background(), 7)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.False(t, store.IsAuthenticated())
}
