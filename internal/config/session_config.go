package config

import "time"

// Session store backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendFile   = "file"
	SessionBackendRedis  = "redis"
)

type SessionConfig interface {
	GetSessionBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetCookieName() string
	GetCookieSecure() bool
	GetSessionTTL() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionBackend() string {
	backend := GetEnv("SESSION_BACKEND", SessionBackendFile)
	switch backend {
	case SessionBackendMemory, SessionBackendFile, SessionBackendRedis:
		return backend
	}
	return SessionBackendFile
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetCookieName() string {
	return GetEnv("COOKIE_NAME", "fairhall_sid")
}

// GetCookieSecure is true everywhere except local DEV, where the console is
// served over plain HTTP.
func (s Session) GetCookieSecure() bool {
	return EnvVars{}.GetEnv() != "DEV"
}

func (Session) GetSessionTTL() time.Duration {
	return durationEnv("SESSION_TTL", 30*24*time.Hour)
}
