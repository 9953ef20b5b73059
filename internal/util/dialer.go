// Package util provides small cross-cutting helpers shared by the REST and
// streaming transports.
package util

import (
	"bufio"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// DialerForProxyURL builds a proxy.Dialer from a http(s):// or socks5:// proxy
// URL, falling back to a direct dialer when proxyURL is empty or invalid. It
// is shared by the utls-fingerprinted REST transport and the websocket dialer
// so both honor the same ZETA_PROXY_URL / Config.ProxyURL setting.
func DialerForProxyURL(proxyURL string) proxy.Dialer {
	trimmed := strings.TrimSpace(proxyURL)
	if trimmed == "" {
		return proxy.Direct
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		log.Errorf("zetaclient: invalid proxy URL %q: %v", trimmed, err)
		return proxy.Direct
	}

	switch parsed.Scheme {
	case "socks5":
		var auth *proxy.Auth
		if parsed.User != nil {
			password, _ := parsed.User.Password()
			auth = &proxy.Auth{User: parsed.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			log.Errorf("zetaclient: create SOCKS5 dialer failed: %v", err)
			return proxy.Direct
		}
		return dialer
	case "http", "https":
		return &httpConnectDialer{proxyAddr: parsed.Host}
	default:
		log.Warnf("zetaclient: unsupported proxy scheme %q, dialing directly", parsed.Scheme)
		return proxy.Direct
	}
}

// httpConnectDialer tunnels TCP connections through an HTTP proxy using CONNECT,
// so that a raw TLS ClientHello (needed for the utls fingerprint) can still be
// sent over the tunneled connection.
type httpConnectDialer struct {
	proxyAddr string
}

func (d *httpConnectDialer) Dial(network, addr string) (net.Conn, error) {
	conn, err := net.DialTimeout(network, d.proxyAddr, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to proxy %s: %w", d.proxyAddr, err)
	}
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr)
	if _, err := conn.Write([]byte(req)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write CONNECT request: %w", err)
	}
	reader := bufio.NewReader(conn)
	resp, err := readConnectResponse(reader)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !strings.HasPrefix(resp, "HTTP/1.1 200") && !strings.HasPrefix(resp, "HTTP/1.0 200") {
		_ = conn.Close()
		return nil, fmt.Errorf("proxy CONNECT failed: %s", strings.TrimSpace(resp))
	}
	return conn, nil
}

func readConnectResponse(r *bufio.Reader) (string, error) {
	statusLine, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read CONNECT response: %w", err)
	}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read CONNECT headers: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			break
		}
	}
	return statusLine, nil
}
