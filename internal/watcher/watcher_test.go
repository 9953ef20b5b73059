package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/otterbroker/zetaclient/internal/config"
)

func TestCurrentReturnsInitialSnapshot(t *testing.T) {
	initial := config.New(config.WithLocale("de"))
	w := New("", initial, nil)
	if got := w.Current(); got != initial {
		t.Fatalf("Current() = %v, want the initial snapshot", got)
	}
}

func TestStartWithEmptyPathIsNoop(t *testing.T) {
	w := New("", config.Default(), func(path string, base *config.Config) (*config.Config, error) {
		t.Fatal("reload must not be called when no path is configured")
		return nil, nil
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestReloadPublishesNewSnapshotOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reloaded := make(chan struct{}, 1)
	w := New(path, config.New(config.WithLocale("en")), func(p string, base *config.Config) (*config.Config, error) {
		next := base.Clone()
		next.Locale = "fr"
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return next, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	// The reload func signals before it returns, and the watcher stores the
	// snapshot only after that, so wait briefly before reading Current().
	time.Sleep(debounceWindow + 50*time.Millisecond)
	if got := w.Current().Locale; got != "fr" {
		t.Fatalf("Current().Locale = %q, want %q", got, "fr")
	}
}
