// Package audit reports security-relevant client observations, such as a
// request for a resource that may belong to another tenant, to the audit
// service.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const EventCrossTenantAccessAttempt = "CROSS_TENANT_ACCESS_ATTEMPT"

// Event is one audit record. ID travels as a request header so the collector
// can de-duplicate; it is not part of the JSON body.
type Event struct {
	ID            uuid.UUID `json:"-"`
	EventCode     string    `json:"eventCode"`
	ResourcePath  string    `json:"resourcePath"`
	Method        string    `json:"method"`
	TenantContext int64     `json:"tenantContext"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewCrossTenantAttempt records a 404 on a tenant-scoped resource.
func NewCrossTenantAttempt(path, method string, tenantID int64, at time.Time) Event {
	return Event{
		ID:            uuid.New(),
		EventCode:     EventCrossTenantAccessAttempt,
		ResourcePath:  path,
		Method:        method,
		TenantContext: tenantID,
		Timestamp:     at.UTC(),
	}
}

// Sink delivers audit events. Callers treat every error as non-fatal.
type Sink interface {
	Record(ctx context.Context, event Event) error
}
