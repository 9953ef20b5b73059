package misc

import "strings"

// RedactCookie returns a "name=<redacted>" form of a "name=value" cookie pair,
// suitable for log lines. Session cookies are credentials and must never be
// logged in full; only the cookie name is useful for debugging routing.
func RedactCookie(cookie string) string {
	name, _, found := strings.Cut(cookie, "=")
	if !found {
		return "<redacted>"
	}
	return name + "=<redacted>"
}

// RedactCookies applies RedactCookie to every element, for logging a whole
// session cookie sequence without leaking its values.
func RedactCookies(cookies []string) []string {
	out := make([]string, len(cookies))
	for i, c := range cookies {
		out[i] = RedactCookie(c)
	}
	return out
}
