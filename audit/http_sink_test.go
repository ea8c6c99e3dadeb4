package audit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-client/audit"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/testutil"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	bodies  []map[string]any
	ids     []string
	status  int
	methods []string
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	c.mu.Lock()
	c.bodies = append(c.bodies, body)
	c.ids = append(c.ids, r.Header.Get(audit.EventIDHeader))
	c.methods = append(c.methods, r.Method)
	status := c.status
	c.mu.Unlock()

	if status == 0 {
		status = http.StatusAccepted
	}
	w.WriteHeader(status)
}

func TestHTTPSink_Record(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(c)
	defer srv.Close()

	sink := audit.NewHTTPSink(srv.Client(), srv.URL+"/audit/events")
	event := audit.NewCrossTenantAttempt("/documents/123", http.MethodGet, 42, testutil.Epoch)

	require.NoError(t, sink.Record(context.Background(), event))

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.bodies, 1)
	require.Equal(t, http.MethodPost, c.methods[0])
	require.Equal(t, event.ID.String(), c.ids[0])
	require.Equal(t, map[string]any{
		"eventCode":     "CROSS_TENANT_ACCESS_ATTEMPT",
		"resourcePath":  "/documents/123",
		"method":        "GET",
		"tenantContext": float64(42),
		"timestamp":     "2023-11-14T22:13:20Z",
	}, c.bodies[0])
}

func TestHTTPSink_CollectorFailure(t *testing.T) {
	c := &collector{status: http.StatusInternalServerError}
	srv := httptest.NewServer(c)
	defer srv.Close()

	sink := audit.NewHTTPSink(srv.Client(), srv.URL)
	err := sink.Record(context.Background(), audit.NewCrossTenantAttempt("/folders/1", http.MethodGet, 1, testutil.Epoch))
	require.ErrorIs(t, err, apperrors.ErrRequestFailed)
	require.Contains(t, err.Error(), "500")
}

func TestHTTPSink_RateLimit(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(c)
	defer srv.Close()

	sink := audit.NewHTTPSink(srv.Client(), srv.URL, audit.WithRateLimit(0.001, 2))
	event := audit.NewCrossTenantAttempt("/folders/1", http.MethodGet, 1, testutil.Epoch)

	require.NoError(t, sink.Record(context.Background(), event))
	require.NoError(t, sink.Record(context.Background(), event))
	require.ErrorIs(t, sink.Record(context.Background(), event), audit.ErrThrottled)

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.bodies, 2)
}

func TestHTTPSink_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sink := audit.NewHTTPSink(nil, url)
	require.Error(t, sink.Record(context.Background(), audit.NewCrossTenantAttempt("/acl/9", http.MethodDelete, 3, testutil.Epoch)))
}
