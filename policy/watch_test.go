package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func trySend[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("profiles:\n  a:\n    rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 20 * time.Millisecond

	reloaded := make(chan *Document, 4)
	failed := make(chan error, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(d *Document) { trySend(reloaded, d) }, func(err error) { trySend(failed, err) })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if err := os.WriteFile(path, []byte("profiles:\n  b:\n    rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// A save can surface as several events; a reload racing a half-written
	// file fails and is retried by the next event.
	deadline := time.After(5 * time.Second)
waitReload:
	for {
		select {
		case doc := <-reloaded:
			if _, ok := doc.Profiles["b"]; !ok {
				t.Fatalf("reloaded document lacks profile b: %v", doc.Profiles)
			}
			break waitReload
		case <-failed:
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}

	if err := os.WriteFile(path, []byte("version: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline = time.After(5 * time.Second)
	for {
		select {
		case err := <-failed:
			if err == nil {
				t.Fatal("expected a load error")
			}
			return
		case doc := <-reloaded:
			if _, ok := doc.Profiles["b"]; !ok {
				t.Fatalf("broken document should not reload, got %v", doc.Profiles)
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload error")
		}
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("profiles:\n  a:\n    rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.debounce = 10 * time.Millisecond

	reloaded := make(chan *Document, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(d *Document) { trySend(reloaded, d) }, nil) }()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}
