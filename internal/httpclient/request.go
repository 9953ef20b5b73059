// request.go implements the signed-request helper and cookie extraction used
// by the session manager (component C) for every REST call.
//
// Grounded on the teacher's internal/logging/request_logger.go for the
// gzip-decoding idiom (it imports github.com/klauspost/compress the same
// way, to transparently unwrap `Content-Encoding: gzip` bodies) and on the
// general request-building shape of internal/auth/claude's HTTP helpers.
package httpclient

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/otterbroker/zetaclient/internal/signing"
)

// Response is the decoded result of a REST call: the status code, the
// (decompressed) raw body, and any Set-Cookie values the server returned.
type Response struct {
	StatusCode int
	Body       []byte
	Cookies    []string
}

// JSON unmarshals the response body into v.
func (r Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Client wraps an *http.Client with the broker's base URL and signs requests
// that carry a non-nil signing key.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// New builds a Client against baseURL using httpClient for transport (see
// NewClient in transport.go for the default utls-fingerprinted one).
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{HTTP: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

// MakeSignedRequest performs method against path (relative to BaseURL). For
// any method other than GET, payload is marshaled as the JSON body (`{}` when
// payload is nil); a GET carries no body and no Content-Type. cookies, if
// non-empty, are joined into a single `Cookie` header. language, if
// non-empty, becomes Accept-Language. If key is non-nil the request
// additionally carries X-Zeta-Timestamp and X-Zeta-Signature headers per the
// request-signing scheme (internal/signing). A non-2xx response is returned
// together with an error carrying the status, status text, and body text.
func (c *Client) MakeSignedRequest(ctx context.Context, method, path string, payload any, cookies []string, language string, key *ecdsa.PrivateKey) (Response, error) {
	// GET carries no body at all; only POST (and friends) send the
	// marshaled payload as JSON.
	var body io.Reader = http.NoBody
	if method != http.MethodGet {
		raw := []byte("{}")
		if payload != nil {
			var err error
			raw, err = json.Marshal(payload)
			if err != nil {
				return Response{}, fmt.Errorf("httpclient: marshal payload: %w", err)
			}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: build request: %w", err)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept-Encoding", "gzip")
	if language != "" {
		req.Header.Set("Accept-Language", language)
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(cookies, "; "))
	}

	if key != nil {
		sig, err := signing.Sign(key, payload)
		if err != nil {
			return Response{}, fmt.Errorf("httpclient: sign request: %w", err)
		}
		req.Header.Set("X-Zeta-Timestamp", sig.Timestamp)
		req.Header.Set("X-Zeta-Signature", sig.Signature)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: do request: %w", err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return Response{}, fmt.Errorf("httpclient: gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Response{}, fmt.Errorf("httpclient: read body: %w", err)
	}

	out := Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
		Cookies:    ExtractCookiesFromResponse(resp),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("httpclient: request failed: %s: %s", resp.Status, raw)
	}
	return out, nil
}
