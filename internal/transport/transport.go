// Package transport provides the minimal duplex-messaging abstraction the
// streaming engine drives, plus a concrete default implementation over
// gorilla/websocket.
//
// Grounded on the teacher's internal/wsrelay/session.go: the heartbeat
// ticker, write-mutex-guarded send path, read-deadline/pong-handler pair, and
// close-once cleanup all carry over directly. The shape is inverted from
// server-accept to client-dial (gorilla's websocket.Dialer in place of
// websocket.Upgrader) and the payload switches from wsrelay's JSON envelope
// to this protocol's plain text lines, since the broker's streaming channel
// is a bare text-frame line protocol rather than a JSON-RPC-style envelope.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"
)

const (
	readTimeout          = 60 * time.Second
	writeTimeout         = 10 * time.Second
	maxInboundMessageLen = 1 << 20 // 1 MiB; streaming payloads are small JSON documents
	heartbeatInterval    = 30 * time.Second
)

// ErrClosed is returned by Send once the transport has been closed, locally
// or by the remote peer.
var ErrClosed = errors.New("transport: connection closed")

// Handlers are the callbacks the streaming engine supplies when opening a
// transport. OnOpen is invoked synchronously inside Dial; OnMessage is
// invoked from the transport's own read goroutine; OnClose (or, when OnClose
// is nil, OnError) is invoked once from whichever goroutine first tears the
// connection down: the read loop, the heartbeat, or a Close caller. Callers
// that need ordering guarantees beyond "delivered in arrival order" must do
// their own serialization (the engine does this via its event-loop channel).
type Handlers struct {
	OnOpen    func()
	OnMessage func(line string)
	OnError   func(err error)
	OnClose   func(err error)
}

// Transport is the duplex line-messaging contract the streaming engine
// depends on. It is satisfied by *WebSocketTransport, and exists so the
// engine and its tests can swap in a fake without pulling in a real network
// connection.
type Transport interface {
	Send(line string) error
	Close() error
}

// WebSocketTransport is the default Transport, dialing the broker's
// streaming endpoint with gorilla/websocket and exchanging text frames.
type WebSocketTransport struct {
	conn       *websocket.Conn
	handlers   Handlers
	closed     chan struct{}
	closeOnce  sync.Once
	writeMutex sync.Mutex
}

// Dial opens a websocket connection to rawURL and begins its read loop in a
// background goroutine. handlers.OnOpen fires synchronously, before Dial
// returns, once the handshake completes. dialer, if non-nil, is used for the
// underlying TCP dial (see internal/util.DialerForProxyURL).
func Dial(ctx context.Context, rawURL string, header http.Header, dialer proxy.Dialer, handlers Handlers) (*WebSocketTransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid url %q: %w", rawURL, err)
	}

	wsDialer := &websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if dialer != nil {
		wsDialer.NetDial = func(network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}

	conn, _, err := wsDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", u.Redacted(), err)
	}

	t := &WebSocketTransport{
		conn:     conn,
		handlers: handlers,
		closed:   make(chan struct{}),
	}
	conn.SetReadLimit(maxInboundMessageLen)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	t.startHeartbeat()
	if handlers.OnOpen != nil {
		handlers.OnOpen()
	}
	go t.readLoop()
	return t, nil
}

func (t *WebSocketTransport) startHeartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.closed:
				return
			case <-ticker.C:
				t.writeMutex.Lock()
				err := t.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout))
				t.writeMutex.Unlock()
				if err != nil {
					t.cleanup(err)
					return
				}
			}
		}
	}()
}

func (t *WebSocketTransport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.cleanup(err)
			return
		}
		if t.handlers.OnMessage != nil {
			t.handlers.OnMessage(string(data))
		}
	}
}

// Send writes line as a single text frame. Concurrent Send calls are
// serialized by an internal mutex, matching gorilla/websocket's single
// in-flight writer requirement.
func (t *WebSocketTransport) Send(line string) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Close closes the underlying connection and fires OnClose(nil) if this call
// wins the race to close; subsequent calls are no-ops.
func (t *WebSocketTransport) Close() error {
	t.cleanup(nil)
	return nil
}

func (t *WebSocketTransport) cleanup(cause error) {
	t.closeOnce.Do(func() {
		close(t.closed)
		_ = t.conn.Close()
		if t.handlers.OnClose != nil {
			t.handlers.OnClose(cause)
		} else if cause != nil && t.handlers.OnError != nil {
			t.handlers.OnError(cause)
		}
	})
}
