// Package config provides configuration sanitizing for display.
package config

import "strings"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Cluster.Seeds = append([]string(nil), cfg.Cluster.Seeds...)

	if sanitized.License.Secret != "" {
		sanitized.License.Secret = maskSecret(sanitized.License.Secret)
	}
	return &sanitized
}

// maskSecret keeps the first and last two characters.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
