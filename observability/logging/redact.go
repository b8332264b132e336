package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces secrets (bearer tokens, source API keys) in log output.
const RedactedValue = "[REDACTED]"

// Keys that MaskField passes through untouched.
var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"component": {},
	"op":        {},
	"account":   {},
	"token":     {},
	"subject":   {},
}

// IsAllowlisted reports whether values logged under key are shown as is.
// Matching ignores case and surrounding spaces.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist lists the pass-through keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField builds a string attr for key. Unless key is on the pass-through
// list, a non-empty value is logged as RedactedValue.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
