// Package logger provides redaction of sensitive values.
package logger

import (
	"log/slog"
	"strings"
)

// LicenseKeyPrefix marks installed license keys. Values carrying it are
// masked whatever key they are logged under.
const LicenseKeyPrefix = "umlk_"

// jwtHeaderPrefix is the base64 form of `{"`, the start of every JWT header.
// A license key pasted without its prefix still matches.
const jwtHeaderPrefix = "eyJ"

const redactedValue = "***REDACTED***"

// Substrings of attribute keys whose values are dropped entirely.
var sensitiveKeyParts = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
	"bearer",
}

// Attribute keys that contain a sensitive part but name public data.
var publicKeys = map[string]bool{
	"key_prefix":  true,
	"counter_key": true,
}

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if masked, ok := maskLicense(s); ok {
			return slog.String(a.Key, masked)
		}
		if s != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = redactSensitive(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// maskLicense reports whether s looks like a license key and returns the
// masked form.
func maskLicense(s string) (string, bool) {
	switch {
	case strings.HasPrefix(s, LicenseKeyPrefix):
		return maskValue(s, LicenseKeyPrefix), true
	case strings.HasPrefix(s, jwtHeaderPrefix) && strings.Count(s, ".") == 2:
		return maskValue(s, ""), true
	}
	return "", false
}

// maskValue keeps prefix plus three characters from each end of the rest.
// Bodies of six characters or fewer are hidden completely.
func maskValue(value, prefix string) string {
	body := strings.TrimPrefix(value, prefix)
	if len(body) <= 6 {
		return prefix + "***"
	}
	return prefix + body[:3] + "..." + body[len(body)-3:]
}

// RedactString masks value if it looks like a license key.
func RedactString(value string) string {
	if masked, ok := maskLicense(value); ok {
		return masked
	}
	return value
}

// IsSensitiveKey reports whether values logged under key are dropped.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if publicKeys[k] {
		return false
	}
	for _, part := range sensitiveKeyParts {
		if strings.Contains(k, part) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether value looks like a license key.
func IsSensitiveValue(value string) bool {
	_, ok := maskLicense(value)
	return ok
}
