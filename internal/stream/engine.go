// Package stream implements the streaming subscription engine: the
// lifecycle state machine, the single-writer event loop that owns the
// transport/registry/last-snapshot state, and the routing of inbound frames
// through the delta patcher into subscriber callbacks.
//
// Grounded on the teacher's internal/wsrelay/session.go single-reader
// dispatch loop (`session.run`/`session.dispatch`), generalized from a
// sync.Map-guarded map of in-flight request channels to a single-writer
// event loop: every externally-callable method and every transport callback
// is marshaled onto one channel of closures, so the registry, id counter and
// last-snapshot strings are touched only by the loop goroutine, matching the
// cooperative single-writer model the expanded spec requires in §5.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/otterbroker/zetaclient/internal/delta"
	"github.com/otterbroker/zetaclient/internal/protocol"
	"github.com/otterbroker/zetaclient/internal/subscription"
	"github.com/otterbroker/zetaclient/internal/trace"
	"github.com/otterbroker/zetaclient/internal/transport"
)

// State is the engine's lifecycle position.
type State int

const (
	StateInit State = iota
	StateOpening
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// HandshakeConfig carries the fields sent once, on open, in the `connect 31`
// frame.
type HandshakeConfig struct {
	Locale        string `json:"locale"`
	PlatformID    string `json:"platformId"`
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

// Handlers are the engine's {open, message, error, close} events.
type Handlers struct {
	OnOpen    func()
	OnMessage func(raw string)
	OnError   func(err error)
	OnClose   func(err error)
}

// Dialer opens the underlying transport. The default production dialer
// wraps transport.Dial; tests substitute a fake that never touches the
// network.
type Dialer func(ctx context.Context, rawURL string, header http.Header, handlers transport.Handlers) (transport.Transport, error)

// Engine is the streaming subscription engine. All exported methods are
// safe for concurrent use: each enqueues a closure onto the loop's command
// channel rather than touching engine state directly.
type Engine struct {
	cmds chan func()

	streamingURL string
	handshake    HandshakeConfig
	dial         Dialer
	handlers     Handlers

	// Fields below this line are touched only by the loop goroutine.
	state          State
	transport      transport.Transport
	registry       *subscription.Registry
	cookies        []string
	connectWaiters []chan error
}

// New constructs an Engine against streamingURL, sending handshake on open.
// dial is the transport constructor (use DefaultDialer in production).
func New(streamingURL string, handshake HandshakeConfig, dial Dialer, handlers Handlers) *Engine {
	e := &Engine{
		cmds:         make(chan func(), 64),
		streamingURL: streamingURL,
		handshake:    handshake,
		dial:         dial,
		handlers:     handlers,
		state:        StateInit,
		registry:     subscription.NewSkippingReserved(),
	}
	go e.loop()
	return e
}

// DefaultDialer adapts transport.Dial to the engine's Dialer signature,
// dialing through the plain network (no proxy).
func DefaultDialer(ctx context.Context, rawURL string, header http.Header, handlers transport.Handlers) (transport.Transport, error) {
	return transport.Dial(ctx, rawURL, header, nil, handlers)
}

func (e *Engine) loop() {
	for fn := range e.cmds {
		fn()
	}
}

func (e *Engine) post(fn func()) {
	e.cmds <- fn
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State {
	result := make(chan State, 1)
	e.post(func() { result <- e.state })
	return <-result
}

// Connect dials the streaming endpoint, supplying cookies on the upgrade
// request. It suspends until the transport reports open and the connect
// frame has been sent, or until ctx is canceled. Rejects synchronously if
// cookies is empty.
func (e *Engine) Connect(ctx context.Context, cookies []string) error {
	if len(cookies) == 0 {
		return fmt.Errorf("stream: misuse: connect requires session cookies")
	}

	result := make(chan error, 1)
	e.post(func() { e.handleConnect(ctx, cookies, result) })

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) handleConnect(ctx context.Context, cookies []string, result chan<- error) {
	if e.state == StateOpening || e.state == StateOpen {
		result <- fmt.Errorf("stream: misuse: connect called while state is %s", e.state)
		return
	}

	e.cookies = cookies
	e.state = StateOpening
	e.connectWaiters = append(e.connectWaiters, result)

	traceID := trace.NewID()
	log.WithField("trace_id", traceID).Debug("stream: dialing streaming endpoint")

	header := upgradeHeader(cookies)

	go func() {
		t, err := e.dial(ctx, e.streamingURL, header, transport.Handlers{
			OnMessage: func(line string) { e.post(func() { e.handleMessage(line) }) },
			OnError:   func(err error) { e.post(func() { e.handleTransportError(err) }) },
			OnClose:   func(err error) { e.post(func() { e.handleTransportClose(err) }) },
		})
		if err != nil {
			e.post(func() { e.handleDialFailure(err) })
			return
		}
		e.post(func() { e.handleTransportOpen(t) })
	}()
}

// upgradeHeader builds the websocket upgrade request header: the session
// cookies joined into one Cookie value, plus the fixed broker Origin the
// streaming endpoint expects on the handshake.
func upgradeHeader(cookies []string) http.Header {
	header := http.Header{}
	if len(cookies) > 0 {
		header.Set("Cookie", strings.Join(cookies, "; "))
	}
	header.Set("Origin", "https://app.traderepublic.com")
	return header
}

func (e *Engine) handleTransportOpen(t transport.Transport) {
	e.transport = t
	payload, err := json.Marshal(e.handshake)
	if err != nil {
		e.failConnect(fmt.Errorf("stream: marshal handshake: %w", err))
		return
	}
	if err := t.Send(protocol.EncodeConnect(string(payload))); err != nil {
		e.failConnect(fmt.Errorf("stream: send handshake: %w", err))
		return
	}

	e.state = StateOpen
	if e.handlers.OnOpen != nil {
		e.handlers.OnOpen()
	}
	e.resolveConnect(nil)
}

func (e *Engine) handleDialFailure(err error) {
	e.state = StateFailed
	e.resolveConnect(err)
}

func (e *Engine) failConnect(err error) {
	e.state = StateFailed
	if e.transport != nil {
		_ = e.transport.Close()
	}
	e.resolveConnect(err)
}

func (e *Engine) resolveConnect(err error) {
	waiters := e.connectWaiters
	e.connectWaiters = nil
	for _, w := range waiters {
		w <- err
	}
}

func (e *Engine) handleTransportError(err error) {
	if e.handlers.OnError != nil {
		e.handlers.OnError(err)
	}
	if e.state == StateOpening {
		e.state = StateFailed
		e.resolveConnect(err)
	}
}

func (e *Engine) handleTransportClose(err error) {
	if e.state == StateOpening {
		e.state = StateFailed
	} else {
		e.state = StateClosed
	}
	e.registry.Clear()
	if e.handlers.OnClose != nil {
		e.handlers.OnClose(err)
	}
	e.resolveConnect(err)
}

func (e *Engine) handleMessage(line string) {
	if e.handlers.OnMessage != nil {
		e.handlers.OnMessage(line)
	}

	frame, err := protocol.Decode(line)
	if err != nil {
		log.WithError(err).WithField("line", line).Debug("stream: dropping malformed inbound frame")
		return
	}

	switch frame.Kind {
	case protocol.KindSnapshot:
		e.routeSnapshot(frame.ID, frame.Payload)
	case protocol.KindDelta:
		e.routeDelta(frame.ID, frame.Payload)
	case protocol.KindClose:
		e.routeClose(frame.ID)
	default:
		log.WithField("kind", frame.Kind).Debug("stream: dropping frame of unrecognized kind")
	}
}

func (e *Engine) routeSnapshot(id, payload string) {
	cb, _, _, ok := e.registry.Lookup(id)
	if !ok {
		return // gating: no entry, silently drop
	}
	if !gjson.Valid(payload) {
		log.WithField("sub_id", id).Debug("stream: dropping unparsable snapshot")
		return
	}
	e.registry.SetLast(id, payload)
	cb(gjson.Parse(payload).Value())
}

func (e *Engine) routeDelta(id, script string) {
	cb, last, hasLast, ok := e.registry.Lookup(id)
	if !ok {
		return // gating: no entry, silently drop
	}
	if !hasLast {
		log.WithField("sub_id", id).Debug("stream: dropping delta with no stored snapshot")
		return
	}

	newText, err := delta.Apply(last, script)
	if err != nil {
		log.WithError(err).WithField("sub_id", id).Debug("stream: dropping unapplicable delta")
		return
	}

	// The mutation is committed even if the reconstructed text fails to
	// parse as JSON below: the patch already happened, and the next delta
	// must chain from this new text, not the stale one.
	e.registry.SetLast(id, newText)

	if !gjson.Valid(newText) {
		log.WithField("sub_id", id).Debug("stream: delta produced unparsable document")
		return
	}
	cb(gjson.Parse(newText).Value())
}

func (e *Engine) routeClose(id string) {
	cb, _, _, ok := e.registry.Lookup(id)
	if !ok {
		return
	}
	cb(subscription.CloseSentinel())
	e.registry.Remove(id)
}

// Subscribe allocates a subscription id, installs cb, and sends the
// subscribe frame. Requires state OPEN.
func (e *Engine) Subscribe(topic string, cb subscription.Callback) (string, error) {
	result := make(chan struct {
		id  string
		err error
	}, 1)
	e.post(func() {
		id, err := e.doSubscribe(topic, cb)
		result <- struct {
			id  string
			err error
		}{id, err}
	})
	r := <-result
	return r.id, r.err
}

// SubscribeWithID installs cb under a caller-supplied id and sends the
// subscribe frame. Requires state OPEN.
func (e *Engine) SubscribeWithID(id, topic string, cb subscription.Callback) error {
	result := make(chan error, 1)
	e.post(func() {
		result <- e.doSubscribeWithID(id, topic, cb)
	})
	return <-result
}

func (e *Engine) doSubscribe(topic string, cb subscription.Callback) (string, error) {
	if e.state != StateOpen {
		return "", fmt.Errorf("stream: misuse: subscribe requires state OPEN, got %s", e.state)
	}
	id := e.registry.AllocateID()
	if err := e.doSubscribeWithID(id, topic, cb); err != nil {
		return "", err
	}
	return id, nil
}

func (e *Engine) doSubscribeWithID(id, topic string, cb subscription.Callback) error {
	if e.state != StateOpen {
		return fmt.Errorf("stream: misuse: subscribe requires state OPEN, got %s", e.state)
	}
	log.WithFields(log.Fields{
		"sub_id": id,
		"type":   gjson.Get(topic, "type").String(),
	}).Debug("stream: subscribing")

	e.registry.Install(id, topic, cb)
	if err := e.transport.Send(protocol.EncodeSubscribe(id, topic)); err != nil {
		e.registry.Remove(id)
		return fmt.Errorf("stream: send subscribe: %w", err)
	}
	return nil
}

// Unsubscribe sends the unsubscribe frame for id/topic. The registry entry
// is not evicted here; it survives until the server's close frame arrives,
// so any already-queued A/D frame for id still routes correctly.
func (e *Engine) Unsubscribe(id, topic string) error {
	result := make(chan error, 1)
	e.post(func() {
		if e.state != StateOpen {
			result <- fmt.Errorf("stream: misuse: unsubscribe requires state OPEN, got %s", e.state)
			return
		}
		// Open question 3 (unclear whether the server keys off the id or the
		// echoed topic): stamp the id into the echoed topic too, on a
		// best-effort basis, so it is discoverable either way.
		echoed := topic
		if patched, err := sjson.Set(topic, "id", id); err == nil {
			echoed = patched
		}
		result <- e.transport.Send(protocol.EncodeUnsubscribe(id, echoed))
	})
	return <-result
}

// Send writes raw directly to the transport. Requires state OPEN.
func (e *Engine) Send(raw string) error {
	result := make(chan error, 1)
	e.post(func() {
		if e.state != StateOpen {
			result <- fmt.Errorf("stream: misuse: send requires state OPEN, got %s", e.state)
			return
		}
		result <- e.transport.Send(raw)
	})
	return <-result
}

// Disconnect hard-cancels the session: the transport is closed, the
// registry is emptied without synthetic close callbacks, and the state
// becomes CLOSED.
func (e *Engine) Disconnect() {
	done := make(chan struct{})
	e.post(func() {
		defer close(done)
		if e.transport != nil {
			_ = e.transport.Close()
		}
		e.registry.Clear()
		if e.state != StateClosed {
			e.state = StateClosed
		}
	})
	<-done
}
