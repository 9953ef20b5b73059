// Package httpclient provides the REST transport used for login and account
// read operations: a TLS-fingerprint-resistant http.RoundTripper plus a thin
// signed-request helper built on top of it.
//
// The per-host http2.ClientConn cache and the Firefox utls fingerprint are
// grounded on the teacher's internal/auth/claude/utls_transport.go. That
// version is built for a proxy under constant load and never reaps a cached
// connection except when a request against it fails; this client instead
// issues bursty, infrequent calls (one login, then occasional account
// reads), so a connection can sit idle long enough for the broker's edge to
// drop it without ever failing a request against it. This version adds an
// idle-connection reaper and a single transparent redial-and-retry on a
// RoundTrip failure, and exposes Close so the SDK can shut the reaper down
// when a Client is discarded. The proxy dialer construction is also swapped
// from golang.org/x/net/proxy.FromURL (which only has a default registered
// scheme for socks5) to internal/util.DialerForProxyURL, which additionally
// supports a plain HTTP CONNECT proxy.
package httpclient

import (
	"net/http"
	"strings"
	"sync"
	"time"

	tls "github.com/refraction-networking/utls"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// idleConnTimeout is how long a cached per-host connection may sit unused
// before the reaper closes it. The broker's own REST facade does not
// document an idle timeout, so this is picked conservatively short relative
// to typical CDN/load-balancer idle-close windows.
const idleConnTimeout = 90 * time.Second

const reapInterval = 30 * time.Second

type cachedConn struct {
	conn     *http2.ClientConn
	lastUsed time.Time
}

// utlsRoundTripper implements http.RoundTripper over a utls client hello,
// caching one HTTP/2 connection per host and reaping connections that have
// gone idle.
type utlsRoundTripper struct {
	mu          sync.Mutex
	connections map[string]*cachedConn
	pending     map[string]*sync.Cond
	dialer      proxy.Dialer

	stopReaper chan struct{}
	reaperDone chan struct{}
}

// newUtlsRoundTripper builds a round tripper dialing through dialer (use
// proxy.Direct for no proxy) and starts its idle-connection reaper.
func newUtlsRoundTripper(dialer proxy.Dialer) *utlsRoundTripper {
	if dialer == nil {
		dialer = proxy.Direct
	}
	t := &utlsRoundTripper{
		connections: make(map[string]*cachedConn),
		pending:     make(map[string]*sync.Cond),
		dialer:      dialer,
		stopReaper:  make(chan struct{}),
		reaperDone:  make(chan struct{}),
	}
	go t.reapIdleConnections()
	return t
}

func (t *utlsRoundTripper) reapIdleConnections() {
	defer close(t.reaperDone)
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopReaper:
			return
		case <-ticker.C:
			t.evictIdle()
		}
	}
}

func (t *utlsRoundTripper) evictIdle() {
	cutoff := time.Now().Add(-idleConnTimeout)
	t.mu.Lock()
	var stale []*http2.ClientConn
	for host, c := range t.connections {
		if c.lastUsed.Before(cutoff) {
			stale = append(stale, c.conn)
			delete(t.connections, host)
		}
	}
	t.mu.Unlock()
	for _, conn := range stale {
		_ = conn.Close()
	}
}

// Close stops the idle-connection reaper and closes every cached connection.
// The round tripper must not be used again afterward.
func (t *utlsRoundTripper) Close() error {
	close(t.stopReaper)
	<-t.reaperDone

	t.mu.Lock()
	conns := t.connections
	t.connections = make(map[string]*cachedConn)
	t.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
	return nil
}

func (t *utlsRoundTripper) getOrCreateConnection(host, addr string) (*http2.ClientConn, error) {
	t.mu.Lock()

	if c, ok := t.connections[host]; ok && c.conn.CanTakeNewRequest() {
		c.lastUsed = time.Now()
		t.mu.Unlock()
		return c.conn, nil
	}

	if cond, ok := t.pending[host]; ok {
		cond.Wait()
		if c, ok := t.connections[host]; ok && c.conn.CanTakeNewRequest() {
			c.lastUsed = time.Now()
			t.mu.Unlock()
			return c.conn, nil
		}
	}

	cond := sync.NewCond(&t.mu)
	t.pending[host] = cond
	t.mu.Unlock()

	h2Conn, err := t.createConnection(host, addr)

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, host)
	cond.Broadcast()

	if err != nil {
		return nil, err
	}
	t.connections[host] = &cachedConn{conn: h2Conn, lastUsed: time.Now()}
	return h2Conn, nil
}

func (t *utlsRoundTripper) createConnection(host, addr string) (*http2.ClientConn, error) {
	conn, err := t.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{ServerName: host}
	tlsConn := tls.UClient(conn, tlsConfig, tls.HelloFirefox_Auto)
	if err := tlsConn.Handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	tr := &http2.Transport{}
	h2Conn, err := tr.NewClientConn(tlsConn)
	if err != nil {
		_ = tlsConn.Close()
		return nil, err
	}
	return h2Conn, nil
}

func (t *utlsRoundTripper) evict(host string, stale *http2.ClientConn) {
	t.mu.Lock()
	if cached, ok := t.connections[host]; ok && cached.conn == stale {
		delete(t.connections, host)
	}
	t.mu.Unlock()
}

// RoundTrip implements http.RoundTripper. A request against a cached
// connection that turns out to have gone stale (the broker's edge closed it
// without a failed request ever evicting it) is retried once against a
// freshly dialed connection instead of surfacing the error to the caller.
func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	hostname := req.URL.Hostname()
	addr := req.URL.Host
	if !strings.Contains(addr, ":") {
		addr += ":443"
	}

	h2Conn, err := t.getOrCreateConnection(hostname, addr)
	if err != nil {
		return nil, err
	}

	resp, err := h2Conn.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	t.evict(hostname, h2Conn)
	log.WithError(err).WithField("host", hostname).Debug("httpclient: cached connection failed, redialing once")

	h2Conn, dialErr := t.getOrCreateConnection(hostname, addr)
	if dialErr != nil {
		return nil, err
	}
	return h2Conn.RoundTrip(req)
}

// NewClient builds an *http.Client whose transport resists TLS fingerprint
// blocking, dialing through dialer (proxy.Direct if nil).
func NewClient(dialer proxy.Dialer) *http.Client {
	return &http.Client{Transport: newUtlsRoundTripper(dialer)}
}

// CloseClient stops the idle-connection reaper and closes every cached
// connection for an *http.Client built by NewClient. It is a no-op for any
// other transport.
func CloseClient(c *http.Client) {
	if c == nil {
		return
	}
	if t, ok := c.Transport.(*utlsRoundTripper); ok {
		_ = t.Close()
	}
}
