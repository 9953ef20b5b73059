package httpclient

import (
	"net/http"
	"regexp"
	"strings"
)

// attrStart matches the start of a plausible cookie/attribute assignment
// (`name=value`), used to decide whether a comma inside a joined Set-Cookie
// header value is a genuine cookie separator or sits inside an
// `expires=<weekday>, <date>` attribute.
var attrStart = regexp.MustCompile(`^\s*[^=;\s]+\s*=`)

var weekdayPrefix = regexp.MustCompile(`(?i)^\s*(mon|tue|wed|thu|fri|sat|sun)[a-z]*\s*,`)

// ExtractCookiesFromResponse returns the `name=value` prefix of every cookie
// the response set, discarding attributes (path, expires, etc).
//
// Go's net/http already exposes Response.Header.Values("Set-Cookie") as
// separate entries when the server sent separate headers — the
// comma-splitting heuristic below only matters when an intermediary or test
// harness has joined them into one comma-separated string (the Go http
// package is annoyingly willing to do this when headers are set manually via
// Header.Add with a raw joined value, and some broker mocks do exactly
// that), which is why we special-case it rather than trusting len==1 means
// "one cookie".
func ExtractCookiesFromResponse(resp *http.Response) []string {
	var out []string
	for _, raw := range resp.Header.Values("Set-Cookie") {
		out = append(out, splitJoinedSetCookie(raw)...)
	}
	return dedupeCookieValues(out)
}

// splitJoinedSetCookie splits a single Set-Cookie header value on commas that
// genuinely separate distinct cookies, per the heuristic: a comma is a valid
// split point only if the text following it looks like `name=value` and does
// not begin with a weekday token (the start of an `expires=Wed, 21 Oct …`
// date). Quoted cookie values (containing their own commas, e.g. a JSON
// value) are never split inside the quotes.
func splitJoinedSetCookie(value string) []string {
	var parts []string
	start := 0
	inQuotes := false
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if inQuotes {
				continue
			}
			after := value[i+1:]
			if weekdayPrefix.MatchString(after) {
				continue
			}
			if !attrStart.MatchString(after) {
				continue
			}
			parts = append(parts, strings.TrimSpace(value[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, strings.TrimSpace(value[start:]))

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := cookieNameValue(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// cookieNameValue returns the `name=value` prefix of one ';'-separated cookie
// segment, discarding any trailing attributes (path=, expires=, etc).
func cookieNameValue(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return ""
	}
	nameValue := segment
	if idx := strings.IndexByte(segment, ';'); idx >= 0 {
		nameValue = segment[:idx]
	}
	nameValue = strings.TrimSpace(nameValue)
	if nameValue == "" || !strings.Contains(nameValue, "=") {
		return ""
	}
	return nameValue
}

func dedupeCookieValues(cookies []string) []string {
	seen := make(map[string]struct{}, len(cookies))
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
