package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// SanitizedEmail masks an email address for logging, "grace@example.com"
// becomes "g****@*******.com".
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}
	return local + "@" + strings.Join(labels, ".")
}

// RedactedAttr hides value outside development environments.
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// Query keys that carry credentials or identify an account.
var sensitiveQueryKeys = []string{"password", "token", "secret", "csrf", "email", "jwt", "auth"}

// SanitizeQueryString reports whether rawQuery names a sensitive parameter,
// in which case the whole query must stay out of the logs. Unparseable
// queries are treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		key = strings.ToLower(key)
		for _, sensitive := range sensitiveQueryKeys {
			if strings.Contains(key, sensitive) {
				return true
			}
		}
	}
	return false
}
