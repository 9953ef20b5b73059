package sdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/otterbroker/zetaclient/internal/httpclient"
	"github.com/otterbroker/zetaclient/internal/session"
	"github.com/otterbroker/zetaclient/internal/stream"
	"github.com/otterbroker/zetaclient/internal/subscription"
	"github.com/otterbroker/zetaclient/internal/transport"
	"github.com/otterbroker/zetaclient/internal/util"
)

// Client is the SDK's single entry point: login, the read-only account
// operations, and a nested streaming handle.
//
// Grounded on the teacher's sdk-facade pattern of wrapping an internal
// manager behind a small exported type (sdk/auth.Manager, sdk/cliproxy's
// service wrapper), here composing internal/session.Manager and
// internal/stream.Engine behind one Client.
type Client struct {
	session   *session.Manager
	streaming *Streaming
	cfg       *Config
	restHTTP  *http.Client
}

// NewClient builds a Client from cfg (use sdk.NewConfig or sdk.LoadConfig).
// If cfg is nil, broker defaults are used.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = NewConfig()
	}

	dialer := util.DialerForProxyURL(cfg.ProxyURL)
	restHTTP := httpclient.NewClient(dialer)
	rest := httpclient.New(cfg.RESTBaseURL, restHTTP)

	sessionMgr := session.New(rest, cfg.Locale)

	c := &Client{session: sessionMgr, cfg: cfg, restHTTP: restHTTP}
	c.streaming = newStreaming(cfg, sessionMgr)
	sessionMgr.AttachStreaming(c.streaming)
	return c
}

// InitiateLogin starts the phone/PIN+OTP web-login flow.
func (c *Client) InitiateLogin(ctx context.Context, phoneNumber, pin string) (session.InitiateLoginResult, error) {
	return c.session.InitiateLogin(ctx, phoneNumber, pin)
}

// CompleteLogin finishes the web-login flow with the OTP code.
func (c *Client) CompleteLogin(ctx context.Context, otp string) error {
	return c.session.CompleteLogin(ctx, otp)
}

// LoginWithCookies adopts a pre-existing session cookie sequence, bypassing
// InitiateLogin/CompleteLogin.
func (c *Client) LoginWithCookies(cookies []string) error {
	return c.session.LoginWithCookies(cookies)
}

// IsAuthenticated reports whether the client currently holds session
// cookies.
func (c *Client) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

// Logout clears in-memory session cookies and disconnects the streaming
// handle, if connected.
func (c *Client) Logout() {
	c.session.Logout()
}

// AccountInfo fetches the authenticated user's account summary.
func (c *Client) AccountInfo(ctx context.Context) (httpclient.Response, error) {
	return c.session.AccountInfo(ctx)
}

// TrendingStocks fetches the broker's current trending-stocks ranking.
func (c *Client) TrendingStocks(ctx context.Context) (httpclient.Response, error) {
	return c.session.TrendingStocks(ctx)
}

// TaxExemptionOrders fetches the account's tax exemption allowance orders.
func (c *Client) TaxExemptionOrders(ctx context.Context) (httpclient.Response, error) {
	return c.session.TaxExemptionOrders(ctx)
}

// PersonalDetails fetches the customer's personal details.
func (c *Client) PersonalDetails(ctx context.Context) (httpclient.Response, error) {
	return c.session.PersonalDetails(ctx)
}

// PaymentMethods fetches the account's configured payment methods.
func (c *Client) PaymentMethods(ctx context.Context) (httpclient.Response, error) {
	return c.session.PaymentMethods(ctx)
}

// TaxResidencies fetches the account's declared tax residencies.
func (c *Client) TaxResidencies(ctx context.Context) (httpclient.Response, error) {
	return c.session.TaxResidencies(ctx)
}

// TaxInformation fetches the account's tax information.
func (c *Client) TaxInformation(ctx context.Context) (httpclient.Response, error) {
	return c.session.TaxInformation(ctx)
}

// Documents lists the account's available documents.
func (c *Client) Documents(ctx context.Context) (httpclient.Response, error) {
	return c.session.Documents(ctx)
}

// Stream returns the nested streaming handle.
func (c *Client) Stream() *Streaming {
	return c.streaming
}

// Close disconnects the streaming handle, if connected, and releases the
// REST transport's cached connections and idle-connection reaper.
func (c *Client) Close() {
	c.streaming.Disconnect()
	httpclient.CloseClient(c.restHTTP)
}

// StreamHandlers re-exports stream.Handlers, the {open, message, error,
// close} event callbacks.
type StreamHandlers = stream.Handlers

// Streaming is the nested streaming subscription handle: connect,
// disconnect, subscribe, unsubscribe, and the underlying engine's lifecycle.
type Streaming struct {
	engine   *stream.Engine
	cfg      *Config
	session  *session.Manager
	handlers stream.Handlers
}

func newStreaming(cfg *Config, sessionMgr *session.Manager) *Streaming {
	s := &Streaming{cfg: cfg, session: sessionMgr}
	s.rebuildEngine()
	return s
}

func (s *Streaming) rebuildEngine() {
	s.engine = stream.New(s.cfg.StreamingURL, stream.HandshakeConfig{
		Locale:        s.cfg.Locale,
		PlatformID:    s.cfg.PlatformID,
		ClientID:      s.cfg.ClientID,
		ClientVersion: s.cfg.ClientVersion,
	}, engineDialer(s.cfg), s.handlers)
}

// Connect dials the streaming endpoint using the session manager's current
// cookies. urlOverride, if non-empty, replaces the configured streaming URL
// for this connection. Rejects if no session cookies have been supplied
// (i.e. the client is not logged in).
func (s *Streaming) Connect(ctx context.Context, urlOverride string) error {
	cookies := s.session.Cookies()
	if len(cookies) == 0 {
		return fmt.Errorf("sdk: misuse: connect requires a prior login")
	}
	if urlOverride != "" {
		cfg := *s.cfg
		cfg.StreamingURL = urlOverride
		s.cfg = &cfg
		s.rebuildEngine()
	}
	return s.engine.Connect(ctx, cookies)
}

// Disconnect implements session.Disconnecter, hard-cancelling the streaming
// session.
func (s *Streaming) Disconnect() {
	s.engine.Disconnect()
}

// Subscribe allocates a subscription id for topic and installs cb.
func (s *Streaming) Subscribe(topic string, cb subscription.Callback) (string, error) {
	return s.engine.Subscribe(topic, cb)
}

// Unsubscribe requests the server close the subscription identified by
// id/topic.
func (s *Streaming) Unsubscribe(id, topic string) error {
	return s.engine.Unsubscribe(id, topic)
}

// Send writes a raw line directly to the streaming transport.
func (s *Streaming) Send(raw string) error {
	return s.engine.Send(raw)
}

// State reports the streaming engine's current lifecycle state.
func (s *Streaming) State() stream.State {
	return s.engine.State()
}

// OnHandlers installs the {open, message, error, close} event callbacks.
// Call before Connect.
func (s *Streaming) OnHandlers(h stream.Handlers) {
	s.handlers = h
	s.rebuildEngine()
}

func engineDialer(cfg *Config) stream.Dialer {
	dialer := util.DialerForProxyURL(cfg.ProxyURL)
	return func(ctx context.Context, rawURL string, header http.Header, handlers transport.Handlers) (transport.Transport, error) {
		return transport.Dial(ctx, rawURL, header, dialer, handlers)
	}
}
