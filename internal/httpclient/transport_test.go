package httpclient

import (
	"testing"
	"time"

	"golang.org/x/net/proxy"
)

func TestNewUtlsRoundTripperDefaultsToDirectDialer(t *testing.T) {
	rt := newUtlsRoundTripper(nil)
	defer rt.Close()
	if rt.dialer != proxy.Direct {
		t.Fatal("expected proxy.Direct when dialer is nil")
	}
}

func TestCloseStopsReaper(t *testing.T) {
	rt := newUtlsRoundTripper(proxy.Direct)
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-rt.reaperDone:
	case <-time.After(time.Second):
		t.Fatal("reaper goroutine did not exit after Close")
	}
}

func TestEvictIdleNoopOnEmptyCache(t *testing.T) {
	rt := newUtlsRoundTripper(proxy.Direct)
	defer rt.Close()
	rt.evictIdle() // must not panic on an empty connections map
	if len(rt.connections) != 0 {
		t.Fatalf("connections = %v, want empty", rt.connections)
	}
}

func TestCloseClientNilIsNoop(t *testing.T) {
	CloseClient(nil) // must not panic
}
