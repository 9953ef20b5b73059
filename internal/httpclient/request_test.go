package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/otterbroker/zetaclient/internal/signing"
)

func TestMakeSignedRequestSetsHeadersAndCookies(t *testing.T) {
	var gotCookie, gotLang, gotContentType string
	var gotTimestamp, gotSignature string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotLang = r.Header.Get("Accept-Language")
		gotContentType = r.Header.Get("Content-Type")
		gotTimestamp = r.Header.Get("X-Zeta-Timestamp")
		gotSignature = r.Header.Get("X-Zeta-Signature")

		w.Header().Set("Set-Cookie", "session=abc; path=/")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	key, err := signing.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	client := New(srv.URL, srv.Client())
	resp, err := client.MakeSignedRequest(context.Background(), http.MethodPost, "/api/v1/test", map[string]string{"a": "b"}, []string{"a=1", "b=2"}, "en", key)
	if err != nil {
		t.Fatalf("MakeSignedRequest: %v", err)
	}

	if gotContentType != "application/json" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if gotLang != "en" {
		t.Fatalf("Accept-Language = %q", gotLang)
	}
	if gotCookie != "a=1; b=2" {
		t.Fatalf("Cookie = %q", gotCookie)
	}
	if gotTimestamp == "" || gotSignature == "" {
		t.Fatal("expected signing headers to be set")
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("Body = %q", resp.Body)
	}
	if len(resp.Cookies) != 1 || resp.Cookies[0] != "session=abc" {
		t.Fatalf("Cookies = %v", resp.Cookies)
	}
}

func TestMakeSignedRequestWithoutKeyOmitsSigningHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Zeta-Timestamp") != "" || r.Header.Get("X-Zeta-Signature") != "" {
			t.Errorf("signing headers must be absent when no key is supplied")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	if _, err := client.MakeSignedRequest(context.Background(), http.MethodGet, "/api/v1/test", nil, nil, "", nil); err != nil {
		t.Fatalf("MakeSignedRequest: %v", err)
	}
}

func TestMakeSignedRequestGETCarriesNoBody(t *testing.T) {
	var gotContentLength int64
	var gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentLength = r.ContentLength
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	// Passing a non-nil payload to a GET must still produce no request
	// body: per the wire contract, GET never sends one.
	if _, err := client.MakeSignedRequest(context.Background(), http.MethodGet, "/api/v1/test", map[string]string{"a": "b"}, nil, "", nil); err != nil {
		t.Fatalf("MakeSignedRequest: %v", err)
	}

	if gotContentLength != 0 {
		t.Fatalf("ContentLength = %d, want 0", gotContentLength)
	}
	if len(gotBody) != 0 {
		t.Fatalf("body = %q, want empty", gotBody)
	}
	if gotContentType != "" {
		t.Fatalf("Content-Type = %q, want unset on a bodyless GET", gotContentType)
	}
}

func TestMakeSignedRequestPOSTWithNilPayloadSendsEmptyObject(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	if _, err := client.MakeSignedRequest(context.Background(), http.MethodPost, "/api/v1/test", nil, nil, "", nil); err != nil {
		t.Fatalf("MakeSignedRequest: %v", err)
	}
	if string(gotBody) != "{}" {
		t.Fatalf("body = %q, want {}", gotBody)
	}
}

func TestMakeSignedRequestDecodesGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(`{"compressed":true}`))
		_ = gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	resp, err := client.MakeSignedRequest(context.Background(), http.MethodGet, "/api/v1/test", nil, nil, "", nil)
	if err != nil {
		t.Fatalf("MakeSignedRequest: %v", err)
	}
	if string(resp.Body) != `{"compressed":true}` {
		t.Fatalf("Body = %q, want decompressed json", resp.Body)
	}
}
