// Package delta reconstructs a subscription's current document text from a
// prior snapshot and a textual diff script. It is a pure, allocation-only
// transform: it never mutates its inputs and never touches any subscription
// state — that lives one layer up, in the subscription registry.
//
// Grounded on the same "walk tokens left-to-right against a read cursor"
// shape used by the teacher's internal/watcher/diff package (structural
// config diffing) and by the lightstreamer reference client's line-oriented
// update parsing, generalized here to the broker's three-token delta
// grammar (=N copy, -N skip, +TEXT insert).
package delta

import (
	"fmt"
	"strconv"
	"strings"
)

// Apply reconstructs the new document text from prev (the previous snapshot's
// raw text) and script (a whitespace-separated sequence of =N / -N / +TEXT
// tokens). It does not mutate prev. An empty script yields an empty string —
// this is the documented, if surprising, wire contract (§9 open question 2 of
// the protocol notes), not a bug in this function.
func Apply(prev, script string) (string, error) {
	var out strings.Builder
	cursor := 0

	for _, token := range tokenize(script) {
		if token == "" {
			continue
		}
		switch token[0] {
		case '=':
			n, err := parseCount(token[1:])
			if err != nil {
				return "", fmt.Errorf("delta: invalid copy token %q: %w", token, err)
			}
			end := cursor + n
			if end > len(prev) {
				return "", fmt.Errorf("delta: copy token %q reads past end of previous snapshot (cursor=%d, len=%d)", token, cursor, len(prev))
			}
			out.WriteString(prev[cursor:end])
			cursor = end
		case '-':
			n, err := parseCount(token[1:])
			if err != nil {
				return "", fmt.Errorf("delta: invalid skip token %q: %w", token, err)
			}
			end := cursor + n
			if end > len(prev) {
				return "", fmt.Errorf("delta: skip token %q reads past end of previous snapshot (cursor=%d, len=%d)", token, cursor, len(prev))
			}
			cursor = end
		case '+':
			out.WriteString(token[1:])
		default:
			return "", fmt.Errorf("delta: unrecognized token %q", token)
		}
	}
	return out.String(), nil
}

// tokenize splits a delta script on runs of whitespace. A "+TEXT" token's
// text therefore cannot carry whitespace of its own: inserted text is split
// the same way every other token is, matching the wire grammar described in
// §4.E.
func tokenize(script string) []string {
	return strings.Fields(script)
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
