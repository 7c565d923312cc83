package streaming

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shycats/vcam/internal/events"
	"github.com/shycats/vcam/internal/scene/scenesim"
)

// stubEncoder writes a shell script that swallows stdin, standing in for
// FFmpeg so pipeline tests do not depend on an installed encoder.
func stubEncoder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "encoder.sh")
	script := "#!/bin/sh\nexec cat > /dev/null\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingScene wraps the simulator and records capture-related calls
// so tests can assert ordering.
type recordingScene struct {
	*scenesim.Sim
	mu    sync.Mutex
	calls []string
}

func (r *recordingScene) SetCaptureResolution(w, h int) {
	r.mu.Lock()
	r.calls = append(r.calls, "SetCaptureResolution")
	r.mu.Unlock()
	r.Sim.SetCaptureResolution(w, h)
}

func (r *recordingScene) CaptureFrame() []byte {
	r.mu.Lock()
	r.calls = append(r.calls, "CaptureFrame")
	r.mu.Unlock()
	return r.Sim.CaptureFrame()
}

func (r *recordingScene) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func newTestPipeline(t *testing.T) (*Pipeline, *recordingScene) {
	t.Helper()
	sim := &recordingScene{Sim: scenesim.New("persp")}
	logger := testLogger()
	pl := NewPipeline(sim, events.New(), logger, logger)
	t.Cleanup(func() { pl.Stop("test cleanup") })
	return pl, sim
}

func testParams(t *testing.T) Params {
	return Params{
		FPS:         30,
		BitrateMbit: 4,
		Port:        15999,
		Opaque:      true,
		ClientIP:    "127.0.0.1",
		FFmpegBin:   stubEncoder(t),
	}
}

func TestPipelineStartPushStop(t *testing.T) {
	pl, _ := newTestPipeline(t)

	if pl.Active() {
		t.Fatal("pipeline should start idle")
	}
	if err := pl.Start(testParams(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !pl.Active() {
		t.Fatal("pipeline should be active after Start")
	}

	if err := pl.PushFrame(TriggerPull); err != nil {
		t.Fatalf("PushFrame failed: %v", err)
	}

	pl.Stop("test")
	if pl.Active() {
		t.Error("pipeline should be idle after Stop")
	}
	if err := pl.PushFrame(TriggerPull); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("PushFrame after Stop = %v, want ErrNotStreaming", err)
	}
}

func TestPipelineStartWhileActive(t *testing.T) {
	pl, _ := newTestPipeline(t)

	if err := pl.Start(testParams(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pl.Start(testParams(t)); !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("second Start = %v, want ErrAlreadyStreaming", err)
	}
}

func TestPipelineStopIdempotent(t *testing.T) {
	pl, _ := newTestPipeline(t)

	pl.Stop("never started")

	if err := pl.Start(testParams(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	pl.Stop("first")
	pl.Stop("second")
}

func TestPipelineLaunchFailure(t *testing.T) {
	pl, _ := newTestPipeline(t)

	p := testParams(t)
	p.FFmpegBin = filepath.Join(t.TempDir(), "missing-binary")
	if err := pl.Start(p); !errors.Is(err, ErrLaunch) {
		t.Errorf("Start = %v, want ErrLaunch", err)
	}
	if pl.Active() {
		t.Error("pipeline must not be active after a launch failure")
	}
}

func TestPipelineRepinsResolutionBeforeCapture(t *testing.T) {
	pl, sim := newTestPipeline(t)

	if err := pl.Start(testParams(t)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pl.PushFrame(TriggerPull); err != nil {
		t.Fatalf("first PushFrame failed: %v", err)
	}

	// Host viewport resizes between two pull requests.
	sim.SetViewportSize(800, 600)
	if err := pl.PushFrame(TriggerPull); err != nil {
		t.Fatalf("second PushFrame failed: %v", err)
	}

	calls := sim.recorded()
	want := []string{"CaptureFrame", "SetCaptureResolution", "CaptureFrame"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestPipelineAutosendPushesFrames(t *testing.T) {
	pl, sim := newTestPipeline(t)

	p := testParams(t)
	p.Autosend = true
	p.FPS = 100
	if err := pl.Start(p); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if calls := sim.recorded(); len(calls) >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("autosend loop pushed no frames")
		case <-time.After(10 * time.Millisecond):
		}
	}

	pl.Stop("test")
}

func TestNextDeadline(t *testing.T) {
	base := time.Unix(1000, 0)
	interval := 100 * time.Millisecond

	t.Run("on schedule advances by interval", func(t *testing.T) {
		next := base.Add(interval)
		sleep, following := nextDeadline(next, base, interval)
		if sleep != interval {
			t.Errorf("sleep = %v, want %v", sleep, interval)
		}
		if !following.Equal(next.Add(interval)) {
			t.Errorf("following = %v, want %v", following, next.Add(interval))
		}
	})

	t.Run("oversleep resynchronizes instead of bursting", func(t *testing.T) {
		next := base
		now := base.Add(5 * interval) // woke up far past the deadline
		sleep, following := nextDeadline(next, now, interval)
		if sleep != 0 {
			t.Errorf("sleep = %v, want 0", sleep)
		}
		if !following.Equal(now.Add(interval)) {
			t.Errorf("following = %v, want now+interval %v", following, now.Add(interval))
		}
	})
}
