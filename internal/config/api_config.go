package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetTokenPath() string
	GetRegisterPath() string
	GetTenantSwitchPath() string
	GetAuditPath() string
	GetPublicPaths() []string
	GetResourceTypes() []string
	GetRequestTimeout() time.Duration
	GetAuditRatePerSecond() float64
}

type API struct{}

var _ APIConfig = API{}

func (API) GetTokenPath() string {
	return GetEnv("TOKEN_PATH", "/auth/login")
}

func (API) GetRegisterPath() string {
	return GetEnv("REGISTER_PATH", "/auth/register")
}

func (API) GetTenantSwitchPath() string {
	return GetEnv("TENANT_SWITCH_PATH", "/auth/switch-organization")
}

func (API) GetAuditPath() string {
	return GetEnv("AUDIT_PATH", "/audit/events")
}

// GetPublicPaths lists the endpoints that never carry a credential
func (a API) GetPublicPaths() []string {
	return []string{a.GetTokenPath(), a.GetRegisterPath()}
}

// GetResourceTypes lists the tenant-scoped collections whose single-item
// 404s are audited as possible cross-tenant probes.
func (API) GetResourceTypes() []string {
	raw := GetEnv("RESOURCE_TYPES", "folders,documents,users,organizations,acl")
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

func (API) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
}

func (API) GetAuditRatePerSecond() float64 {
	return GetEnvFloat("AUDIT_RATE_PER_SECOND", 5)
}
