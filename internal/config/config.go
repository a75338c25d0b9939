package config

type Config interface {
	EnvConfig
	AuthConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Auth
	Session
}

func New() Config {
	return mainConfig{}
}
