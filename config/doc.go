// Package config loads process configuration from an optional config.yml,
// an optional .env file and the environment, in that order of precedence.
//
// Every mapstructure key of the target struct is bound to its UPPER_SNAKE
// environment name, so api_host is read from API_HOST and auth.demo_mode
// from AUTH_DEMO_MODE:
//
//	var cfg gateway.Config
//	err := config.LoadConfig("ylai", &cfg, config.WithEnvFile(".env.local"))
package config
