package config

type Config interface {
	EnvConfig
	SessionConfig
	APIConfig
}

type mainConfig struct {
	EnvVars
	Session
	API
}

func New() Config {
	return mainConfig{}
}
