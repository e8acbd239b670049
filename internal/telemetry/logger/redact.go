package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys whose values are never written verbatim.
// Stored values are user data and may be arbitrarily large.
var sensitiveKeyPatterns = []string{
	"value",
	"password",
	"secret",
	"credential",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if !IsSensitiveKey(a.Key) {
		return a
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redactedValue)
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok {
			return slog.String(a.Key, RedactBytes(b))
		}
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// RedactBytes describes a payload by size only.
func RedactBytes(b []byte) string {
	return fmt.Sprintf("<%d bytes>", len(b))
}

// IsSensitiveKey reports whether values logged under key are masked.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
