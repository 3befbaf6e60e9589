package config

import (
	"sync"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

type ServerConfig struct {
	Addr            string
	MaxUploadSizeMB int
	Env             string
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()

		serverConfig = &ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			MaxUploadSizeMB: getEnvInt("MAX_UPLOAD_SIZE_MB", 50),
			Env:             getEnv("APP_ENV", "unknown"),
		}
	})
	return serverConfig
}
