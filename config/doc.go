// Package config handles loading and validating the service configuration from
// a .env file, YAML files and environment variables. It defines the server
// settings, allowed CORS origins, upstream endpoints and timeouts, the image
// resolution strategy and the circuit breaker limits.
package config
