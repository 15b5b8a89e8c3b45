package config

import (
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything read from the environment, loaded once at startup.
type Config struct {
	ServerPort  string `envconfig:"SERVER_PORT" default:"5000"`
	MongoURL    string `envconfig:"MONGO_URL" default:"mongodb://localhost:27017"`
	MongoDBName string `envconfig:"MONGO_DBNAME" default:"microtwitter"`
	RedisURL    string `envconfig:"REDIS_URL" default:"localhost:6379"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`
	AppMode     string `envconfig:"APP_MODE" default:"SERVER"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
