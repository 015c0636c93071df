package main

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerAddr string `envconfig:"SERVER_ADDR" default:"localhost:8080"`
	AdminAddr  string `envconfig:"ADMIN_ADDR" default:"localhost:9090"`
	// JWT_SECRET lets chatctl mint tokens for local testing
	JWTSecret string `envconfig:"JWT_SECRET"`
	// CHATCTL_COLOURS enables colorized output
	Colours bool `envconfig:"COLOURS" default:"true"`
}

// LoadConfig reads CHATCTL_* variables.
func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("chatctl", &cfg)
	return cfg, err
}
