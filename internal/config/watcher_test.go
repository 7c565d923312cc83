package config

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type watchedFile struct {
	Label string `toml:"label"`
	Count int    `toml:"count"`
}

func loadWatchedFile(path string) (watchedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return watchedFile{}, err
	}
	var f watchedFile
	err = toml.Unmarshal(data, &f)
	return f, err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatcher_Reload(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "watched_*.toml")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.WriteString("label = \"initial\"\ncount = 1\n")
	tmpFile.Close()

	received := make(chan watchedFile, 1)
	watcher := NewWatcher(
		tmpFile.Name(),
		loadWatchedFile,
		quietLogger(),
		WithDebounce[watchedFile](50*time.Millisecond),
	)
	watcher.OnReload(func(f watchedFile) {
		received <- f
	})

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(tmpFile.Name(), []byte("label = \"updated\"\ncount = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-received:
		if f.Label != "updated" || f.Count != 42 {
			t.Errorf("got %+v, want label=updated count=42", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcher_ErrorHandler(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "watched_*.toml")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.WriteString("label = \"ok\"\n")
	tmpFile.Close()

	var loadErrors atomic.Int32
	watcher := NewWatcher(
		tmpFile.Name(),
		loadWatchedFile,
		quietLogger(),
		WithDebounce[watchedFile](50*time.Millisecond),
		WithErrorHandler[watchedFile](func(error) {
			loadErrors.Add(1)
		}),
	)

	notified := make(chan struct{}, 1)
	watcher.OnReload(func(watchedFile) {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(tmpFile.Name(), []byte("label = broken ["), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for loadErrors.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for loader error")
		case <-time.After(20 * time.Millisecond):
		}
	}

	select {
	case <-notified:
		t.Error("handlers should not run when the loader fails")
	default:
	}
}

func TestWatcher_Unsubscribe(t *testing.T) {
	tmpFile, err := os.CreateTemp(t.TempDir(), "watched_*.toml")
	if err != nil {
		t.Fatal(err)
	}
	tmpFile.WriteString("count = 1\n")
	tmpFile.Close()

	var calls atomic.Int32
	watcher := NewWatcher(
		tmpFile.Name(),
		loadWatchedFile,
		quietLogger(),
		WithDebounce[watchedFile](50*time.Millisecond),
	)
	unsub := watcher.OnReload(func(watchedFile) {
		calls.Add(1)
	})
	unsub()

	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(tmpFile.Name(), []byte("count = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("unsubscribed handler ran %d times", calls.Load())
	}
}
