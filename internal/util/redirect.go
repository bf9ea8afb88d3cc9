package util

import (
	"net/url"
	"strings"
)

// SafeNextPath returns next when it is a local absolute path, otherwise fallback.
// Protocol-relative ("//host") and backslash tricks are rejected.
func SafeNextPath(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return fallback
	}
	if strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}

// WithQuery appends a query parameter to a local path
func WithQuery(path, key, value string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
