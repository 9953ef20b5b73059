package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestDialSendReceivesEcho(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 1)
	opened := make(chan struct{}, 1)

	tr, err := Dial(context.Background(), wsURL, nil, nil, Handlers{
		OnOpen: func() { opened <- struct{}{} },
		OnMessage: func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
			received <- struct{}{}
		},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("OnOpen never fired")
	}

	if err := tr.Send("connect 31 {}"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "connect 31 {}" {
		t.Fatalf("got %v, want [%q]", got, "connect 31 {}")
	}
}

func TestSendAfterCloseReturnsErrClosed(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	closed := make(chan struct{}, 1)
	tr, err := Dial(context.Background(), wsURL, nil, nil, Handlers{
		OnClose: func(error) { closed <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired")
	}

	if err := tr.Send("hello"); err != ErrClosed {
		t.Fatalf("Send after close = %v, want ErrClosed", err)
	}
}

func TestDialRejectsInvalidURL(t *testing.T) {
	if _, err := Dial(context.Background(), "://bad", nil, nil, Handlers{}); err == nil {
		t.Fatal("expected error for malformed url")
	}
}
