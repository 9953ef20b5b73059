// Package protocol implements the line-oriented framing codec for the
// streaming subscription channel: encoding outbound connect/sub/unsub control
// frames and decoding inbound `<id> <kind> <payload>` server frames.
//
// Grounded on the teacher's internal/wsrelay/message.go typed-envelope style
// (a small closed set of frame kinds, decoded into a plain struct) adapted
// from a JSON envelope to this protocol's space-delimited line grammar.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ReservedConnectID is the subscription identifier reserved exclusively for
// the handshake frame; it is never allocated to a data subscription.
const ReservedConnectID = "31"

// Frame kinds carried on inbound server frames.
const (
	KindSnapshot = "A" // full JSON document for a subscription
	KindDelta    = "D" // textual patch script relative to the previous snapshot
	KindClose    = "C" // server-initiated termination of a subscription
)

// Inbound is a decoded `<id> <kind> <payload>` server frame. Payload is empty
// for KindClose and is carried verbatim (unmodified) otherwise.
type Inbound struct {
	ID      string
	Kind    string
	Payload string
}

// EncodeConnect builds the single `connect 31 <json>` handshake frame sent
// exactly once, immediately after the transport reports open.
func EncodeConnect(payloadJSON string) string {
	return "connect " + ReservedConnectID + " " + payloadJSON
}

// EncodeSubscribe builds a `sub <id> <json>` frame for a new subscription.
func EncodeSubscribe(id, topicJSON string) string {
	return "sub " + id + " " + topicJSON
}

// EncodeUnsubscribe builds an `unsub <id> <json>` frame. The topic is echoed
// alongside the id because the wire contract for which the server requires is
// unclear from observed traffic (§9 open question 3); emitting both is safe.
func EncodeUnsubscribe(id, topicJSON string) string {
	return "unsub " + id + " " + topicJSON
}

// Decode parses a raw inbound line into its (id, kind, payload) triple.
// Payloads may themselves contain embedded spaces (e.g. JSON text); the
// decoder rejoins everything after the first two space-delimited tokens
// rather than requiring space-free payloads.
func Decode(line string) (Inbound, error) {
	idEnd := strings.IndexByte(line, ' ')
	if idEnd < 0 {
		return Inbound{}, fmt.Errorf("protocol: malformed frame, missing id/kind separator: %q", line)
	}
	id := line[:idEnd]
	rest := line[idEnd+1:]

	kindEnd := strings.IndexByte(rest, ' ')
	var kind, payload string
	if kindEnd < 0 {
		// No payload, e.g. a bare `<id> C` close frame.
		kind = rest
		payload = ""
	} else {
		kind = rest[:kindEnd]
		payload = rest[kindEnd+1:]
	}

	if id == "" || kind == "" {
		return Inbound{}, fmt.Errorf("protocol: malformed frame, empty id or kind: %q", line)
	}
	if _, err := strconv.Atoi(id); err != nil {
		return Inbound{}, fmt.Errorf("protocol: malformed frame, non-numeric id %q: %w", id, err)
	}
	return Inbound{ID: id, Kind: kind, Payload: payload}, nil
}
