package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	appNameVar      = "APP_NAME"
	baseURLVar      = "BASE_URL"
	folderEnvVar    = "DATA_FOLDER"
	clientIDVar     = "CLIENT_ID"
	clientSecretVar = "CLIENT_SECRET"
	sealKeyVar      = "STORAGE_SEAL_KEY"
	logLevelVar     = "LOG_LEVEL"
)

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetDataFolder() string
	GetClientID() string
	GetClientSecret() string
	GetSealKey() ([]byte, error)
	GetLogLevel() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Auth Client")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the API base URL (e.g., "https://api.example.com")
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetDataFolder is the directory shared by every client process on this host
func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetClientID() string {
	return GetEnv(clientIDVar, "auth-client")
}

func (EnvVars) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

// GetSealKey returns the 32 byte key used to seal persisted sessions, or nil
// when STORAGE_SEAL_KEY is unset.
func (EnvVars) GetSealKey() ([]byte, error) {
	raw := os.Getenv(sealKeyVar)
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not hex: %w", sealKeyVar, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must be 32 bytes, got %d", sealKeyVar, len(key))
	}
	return key, nil
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses envVar as a time.Duration, falling back to defaultValue
// when it is unset or malformed.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetEnvFloat(envVar string, defaultValue float64) float64 {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return defaultValue
	}
	return f
}
