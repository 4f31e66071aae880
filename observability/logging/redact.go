package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in logs.
const RedactedValue = "[REDACTED]"

// Keys that are public on-chain data or log plumbing and are emitted as is.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"loan":      {},
	"mint":      {},
	"epoch":     {},
	"route":     {},
	"method":    {},
	"status":    {},
	"request":   {},
}

// IsAllowlisted reports whether key is exempt from redaction.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField redacts value unless key is allowlisted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskBearer keeps the scheme and the last four characters of an
// Authorization header.
func MaskBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		if header == "" {
			return ""
		}
		return RedactedValue
	}
	if len(token) <= 8 {
		return scheme + " " + RedactedValue
	}
	return scheme + " ..." + token[len(token)-4:]
}
