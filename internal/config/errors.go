package config

import "errors"

// Sentinel error kinds returned by Load and Validate; callers match with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
	ErrEnvFile       = errors.New("read .env file")
)
