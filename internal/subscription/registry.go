// Package subscription implements the registry that allocates subscription
// identifiers and maps them to consumer callbacks and last-known snapshot
// text. Registry membership is the sole gating mechanism for inbound frame
// routing: an id absent from the registry is, by construction, not routed to
// anything.
//
// Grounded on the teacher's internal/wsrelay session pending-request map
// (internal/wsrelay/session.go's `pending sync.Map` keyed by message id),
// generalized from "one in-flight request per id" to "one long-lived
// subscription per id" and simplified to a plain map since the streaming
// engine (component G) is the registry's single caller, always from its
// single-writer event loop (see §5 of the expanded spec).
package subscription

import "strconv"

// CloseSentinelKey is the key of the `{messageType: "C"}` closure marker that
// CloseSentinel builds for a subscription's callback when the server closes it.
const CloseSentinelKey = "messageType"

// Callback consumes decoded documents for one subscription. It is invoked
// synchronously with message receipt; see the engine's single-writer
// discussion for why a slow callback back-pressures message routing.
type Callback func(doc any)

// entry is one subscription's mutable state.
type entry struct {
	topic    string // the caller-supplied topic, as raw JSON text
	callback Callback
	lastText string
	hasLast  bool
}

// Registry owns the mapping from subscription id to consumer state and the
// monotonic id counter. It is not safe for concurrent use — callers must
// serialize access through a single-writer event loop (see internal/stream).
type Registry struct {
	nextID int
	byID   map[string]*entry
}

// New constructs an empty registry with the id counter starting at start (the
// expanded spec's recommendation is to start at 32, skipping the handshake's
// reserved id 31; see NewSkippingReserved for that default).
func New(start int) *Registry {
	if start < 1 {
		start = 1
	}
	return &Registry{nextID: start, byID: make(map[string]*entry)}
}

// NewSkippingReserved constructs a registry whose counter starts at 32,
// permanently avoiding any future collision with the reserved handshake id 31
// (§9 design note: "Implementations should skip 31 or start the counter at
// 32"). This is the default used by the streaming engine.
func NewSkippingReserved() *Registry {
	return New(32)
}

// AllocateID returns the current counter value as decimal text, then
// increments it. Every id returned is strictly greater than every id
// previously returned by this registry instance.
func (r *Registry) AllocateID() string {
	id := strconv.Itoa(r.nextID)
	r.nextID++
	return id
}

// Install records a new subscription entry under id, associated with topic
// (the raw JSON text the caller supplied) and callback.
func (r *Registry) Install(id, topic string, callback Callback) {
	r.byID[id] = &entry{topic: topic, callback: callback}
}

// Remove evicts the subscription entry for id, if any. Called once the server
// delivers a close frame, or when sending the subscribe frame fails; a hard
// disconnect uses Clear instead.
func (r *Registry) Remove(id string) {
	delete(r.byID, id)
}

// Lookup returns the callback and last-snapshot text (if any) installed under
// id. ok is false if, and only if, no entry exists for id — the gating check
// inbound routing relies on to silently drop late post-unsubscribe frames.
func (r *Registry) Lookup(id string) (callback Callback, lastText string, hasLast bool, ok bool) {
	e, found := r.byID[id]
	if !found {
		return nil, "", false, false
	}
	return e.callback, e.lastText, e.hasLast, true
}

// Topic returns the raw topic JSON text installed under id. The engine's
// unsubscribe path does not read it; it echoes the topic the caller passes.
func (r *Registry) Topic(id string) (topic string, ok bool) {
	e, found := r.byID[id]
	if !found {
		return "", false
	}
	return e.topic, true
}

// SetLast stores the reconstructed snapshot text for id, for the next delta
// to chain from. A no-op if id has no entry (e.g. it was already closed).
func (r *Registry) SetLast(id, text string) {
	if e, ok := r.byID[id]; ok {
		e.lastText = text
		e.hasLast = true
	}
}

// Len reports the number of live subscription entries.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Clear evicts every subscription entry without invoking any callback — used
// by a hard disconnect, where outstanding subscriptions receive no synthetic
// close.
func (r *Registry) Clear() {
	r.byID = make(map[string]*entry)
}

// CloseSentinel is the decoded document value delivered to a subscription's
// callback when its close frame arrives.
func CloseSentinel() map[string]any {
	return map[string]any{CloseSentinelKey: "C"}
}
