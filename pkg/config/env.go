package config

import (
	"os"
	"strings"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// GetEnvironment returns the current environment from BRAKES_APP_ENVIRONMENT.
// Defaults to development if not set.
func GetEnvironment() string {
	env := os.Getenv("BRAKES_APP_ENVIRONMENT")
	if env == "" {
		return EnvDevelopment
	}
	return strings.ToLower(env)
}

// IsProductionLike reports whether env enforces production configuration requirements.
func IsProductionLike(env string) bool {
	env = strings.ToLower(env)
	return env == EnvStaging || env == EnvProduction
}
