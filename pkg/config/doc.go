// Package config provides configuration management for the authenticating proxy.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("authproxy.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("authproxy.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention AUTHPROXY_SECTION_FIELD.
// For example:
//
//   - AUTHPROXY_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - AUTHPROXY_ROUTING_URL overrides routing.url
//   - AUTHPROXY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// The legacy API_KEYS variable fills credentials.api_keys when the file
// leaves it empty.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Reloading
//
// Watcher re-reads the file on change and passes the new Config to a
// callback. Only settings that are safe to swap at runtime, such as the log
// level, are applied by the server; the rest take effect on restart.
package config
