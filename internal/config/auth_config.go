package config

import "time"

// Auth modes. In mock mode the gateway runs an in-process auth backend with
// seeded users instead of calling the platform API.
const (
	AuthModeLive = "live"
	AuthModeMock = "mock"
)

// Retry modes for the outbound API interceptor.
const (
	RetryModePerRequest = "per-request"
	RetryModeGlobal     = "global"
)

type AuthConfig interface {
	GetAuthMode() string
	GetAuthAPIURL() string
	GetAuthTimeout() time.Duration
	GetLoginTimeout() time.Duration
	GetRetryMode() string
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetAuthMode() string {
	mode := GetEnv("AUTH_MODE", AuthModeMock)
	if mode != AuthModeLive && mode != AuthModeMock {
		return AuthModeMock
	}
	return mode
}

func (Auth) GetAuthAPIURL() string {
	return GetEnv("AUTH_API_URL", "http://localhost:9090")
}

func (Auth) GetAuthTimeout() time.Duration {
	return durationEnv("AUTH_TIMEOUT", 10*time.Second)
}

func (Auth) GetLoginTimeout() time.Duration {
	return durationEnv("AUTH_LOGIN_TIMEOUT", 30*time.Second)
}

func (Auth) GetRetryMode() string {
	mode := GetEnv("RETRY_MODE", RetryModePerRequest)
	if mode != RetryModeGlobal {
		return RetryModePerRequest
	}
	return mode
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
