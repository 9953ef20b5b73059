// Package session implements the phone/PIN+OTP web-login flow and the
// read-only REST account operations that ride on the resulting session
// cookies.
//
// Grounded on the teacher's sdk/auth/manager.go for the login/record shape
// (Login returns an opaque record the caller threads into later calls), with
// persistence intentionally dropped: this package holds cookies only in
// memory (a Non-goal excludes on-disk persistence of session credentials and
// device keys).
package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/otterbroker/zetaclient/internal/httpclient"
	"github.com/otterbroker/zetaclient/internal/misc"
	"github.com/otterbroker/zetaclient/internal/trace"
)

const (
	pathInitiateLogin = "/api/v1/auth/web/login"
	pathAccountInfo   = "/api/v2/auth/account"
	pathTrending      = "/api/v1/ranking/trendingStocks"
	pathTaxExemption  = "/api/v1/taxes/exemptionorders"
	pathPersonal      = "/api/v1/customer/personal-details"
	pathPaymentMethod = "/api/v2/payment/methods"
	pathTaxResidency  = "/api/v1/country/taxresidency"
	pathTaxInfo       = "/api/v1/taxes/information"
	pathDocuments     = "/api/v1/documents/all"
)

// State is the session manager's lifecycle position.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingOTP
	StateAuthenticated
)

// InitiateLoginResult is the broker's response to initiateLogin.
type InitiateLoginResult struct {
	ProcessID          string `json:"processId"`
	CountdownInSeconds int    `json:"countdownInSeconds"`
	TwoFactorChannel   string `json:"2fa"`
}

// Disconnecter is satisfied by an attached streaming handle; Logout calls
// Disconnect on it if one is attached, matching the teacher's
// Manager/Authenticator split where logout tears down dependent resources.
type Disconnecter interface {
	Disconnect()
}

// Manager drives the web-login flow and exposes the read-only account
// operations. It is safe for concurrent use.
type Manager struct {
	rest     *httpclient.Client
	language string

	mu        sync.Mutex
	state     State
	processID string
	initial   []string // cookies returned by initiateLogin, needed by completeLogin
	cookies   []string // session cookies, set once authenticated
	streaming Disconnecter
}

// New constructs a Manager issuing REST calls through rest, with an optional
// Accept-Language value.
func New(rest *httpclient.Client, language string) *Manager {
	return &Manager{rest: rest, language: language}
}

// AttachStreaming records the streaming handle Logout should disconnect.
func (m *Manager) AttachStreaming(d Disconnecter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaming = d
}

// InitiateLogin posts {phoneNumber, pin} to the web-login endpoint. On
// success the manager transitions to StateAwaitingOTP and remembers the
// process id and initial cookies for CompleteLogin.
func (m *Manager) InitiateLogin(ctx context.Context, phoneNumber, pin string) (InitiateLoginResult, error) {
	traceID := trace.NewID()
	log.WithField("trace_id", traceID).Debug("session: initiating login")

	payload := map[string]string{"phoneNumber": phoneNumber, "pin": pin}
	resp, err := m.rest.MakeSignedRequest(ctx, http.MethodPost, pathInitiateLogin, payload, nil, m.language, nil)
	if err != nil {
		return InitiateLoginResult{}, fmt.Errorf("session: initiate login: %w", err)
	}
	if resp.StatusCode >= 400 {
		return InitiateLoginResult{}, fmt.Errorf("session: initiate login: server returned status %d", resp.StatusCode)
	}

	var result InitiateLoginResult
	if err := resp.JSON(&result); err != nil {
		return InitiateLoginResult{}, fmt.Errorf("session: initiate login: decode response: %w", err)
	}

	m.mu.Lock()
	m.state = StateAwaitingOTP
	m.processID = result.ProcessID
	m.initial = resp.Cookies
	m.mu.Unlock()

	return result, nil
}

// CompleteLogin posts the OTP to the process-scoped login endpoint, carrying
// the cookies InitiateLogin received. It fails synchronously, before any
// I/O, if InitiateLogin has not yet succeeded or returned no cookies.
func (m *Manager) CompleteLogin(ctx context.Context, otp string) error {
	m.mu.Lock()
	if m.state != StateAwaitingOTP {
		m.mu.Unlock()
		return fmt.Errorf("session: misuse: CompleteLogin called before a successful InitiateLogin")
	}
	if len(m.initial) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("session: misuse: CompleteLogin called with no initial cookies from InitiateLogin")
	}
	processID := m.processID
	initial := m.initial
	m.mu.Unlock()

	path := fmt.Sprintf("/api/v1/auth/web/login/%s/%s", processID, otp)
	resp, err := m.rest.MakeSignedRequest(ctx, http.MethodPost, path, map[string]any{}, initial, m.language, nil)
	if err != nil {
		return fmt.Errorf("session: complete login: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("session: complete login: server returned status %d", resp.StatusCode)
	}
	if len(resp.Cookies) == 0 {
		return fmt.Errorf("session: complete login: server did not return session cookies")
	}

	m.mu.Lock()
	m.cookies = resp.Cookies
	m.state = StateAuthenticated
	m.mu.Unlock()
	log.WithField("cookies", misc.RedactCookies(resp.Cookies)).Debug("session: login complete")
	return nil
}

// LoginWithCookies bypasses the initiate/complete flow by adopting an
// already-established cookie sequence. Fails if cookies is empty.
func (m *Manager) LoginWithCookies(cookies []string) error {
	if len(cookies) == 0 {
		return fmt.Errorf("session: misuse: LoginWithCookies requires a non-empty cookie sequence")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies = append([]string(nil), cookies...)
	m.state = StateAuthenticated
	log.WithField("cookies", misc.RedactCookies(cookies)).Debug("session: adopted external cookies")
	return nil
}

// IsAuthenticated reports whether the manager currently holds session
// cookies.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticated
}

// Cookies returns the current session cookies, or nil if unauthenticated.
func (m *Manager) Cookies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cookies...)
}

// Logout clears in-memory session cookies and, if a streaming handle is
// attached, disconnects it.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.cookies = nil
	m.processID = ""
	m.initial = nil
	m.state = StateUnauthenticated
	streaming := m.streaming
	m.mu.Unlock()

	if streaming != nil {
		streaming.Disconnect()
	}
}

func (m *Manager) authenticatedGet(ctx context.Context, path string) (httpclient.Response, error) {
	m.mu.Lock()
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		return httpclient.Response{}, fmt.Errorf("session: misuse: %s called before login", path)
	}
	cookies := m.cookies
	m.mu.Unlock()

	return m.rest.MakeSignedRequest(ctx, http.MethodGet, path, nil, cookies, m.language, nil)
}

// AccountInfo fetches the authenticated user's account summary.
func (m *Manager) AccountInfo(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathAccountInfo)
}

// TrendingStocks fetches the broker's current trending-stocks ranking.
func (m *Manager) TrendingStocks(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathTrending)
}

// TaxExemptionOrders fetches the account's tax exemption allowance orders.
func (m *Manager) TaxExemptionOrders(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathTaxExemption)
}

// PersonalDetails fetches the customer's personal details.
func (m *Manager) PersonalDetails(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathPersonal)
}

// PaymentMethods fetches the account's configured payment methods.
func (m *Manager) PaymentMethods(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathPaymentMethod)
}

// TaxResidencies fetches the account's declared tax residencies.
func (m *Manager) TaxResidencies(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathTaxResidency)
}

// TaxInformation fetches the account's tax information.
func (m *Manager) TaxInformation(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathTaxInfo)
}

// Documents lists the account's available documents.
func (m *Manager) Documents(ctx context.Context) (httpclient.Response, error) {
	return m.authenticatedGet(ctx, pathDocuments)
}
