package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/time/rate"
)

const EventIDHeader = "X-Audit-Event-Id"

var ErrThrottled = apperrors.New("audit event throttled")

var _ Sink = (*HTTPSink)(nil)

// HTTPSink POSTs events as JSON to a collector endpoint. It never retries.
type HTTPSink struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
}

type HTTPSinkOption func(*HTTPSink)

// WithRateLimit drops events beyond perSecond (with the given burst) instead
// of queueing them.
func WithRateLimit(perSecond float64, burst int) HTTPSinkOption {
	return func(s *HTTPSink) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewHTTPSink(client *http.Client, endpoint string, options ...HTTPSinkOption) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}
	s := &HTTPSink{client: client, endpoint: endpoint}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *HTTPSink) Record(ctx context.Context, event Event) error {
	if s.limiter != nil && !s.limiter.Allow() {
		return ErrThrottled
	}

	body, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrapf(err, "HTTPSink.Record marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrapf(err, "HTTPSink.Record request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventIDHeader, event.ID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, "HTTPSink.Record")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("HTTPSink.Record: collector returned %d: %w", resp.StatusCode, apperrors.ErrRequestFailed)
	}
	return nil
}
