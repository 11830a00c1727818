// Package config defines the canvasmesh-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation run before the server starts
//   - sanitize.go: secret masking for logging
//
// Configuration is loaded with internal/infra/confloader from a YAML
// file, CANVASMESH_ environment variables and flags.
package config
