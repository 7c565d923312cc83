package streaming

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shycats/vcam/internal/events"
	"github.com/shycats/vcam/internal/metrics"
	"github.com/shycats/vcam/internal/scene"
)

// Frame push triggers, used as the metrics label.
const (
	TriggerPull     = "pull"
	TriggerAutosend = "autosend"
)

var (
	// ErrNotStreaming is returned when a frame is pushed while no
	// encoder is running or after its input pipe failed.
	ErrNotStreaming = errors.New("not streaming")

	// ErrAlreadyStreaming is returned by Start while a run is active.
	ErrAlreadyStreaming = errors.New("already streaming")

	// ErrLaunch wraps encoder startup failures.
	ErrLaunch = errors.New("failed to launch encoder")
)

const (
	gracefulExitTimeout = 5 * time.Second
	killExitTimeout     = 5 * time.Second
)

// Pipeline owns one encoder subprocess at a time. Frames are captured
// from the scene adapter and written to the encoder's stdin; teardown
// closes the pipe and waits for the process to exit.
type Pipeline struct {
	adapter       scene.Adapter
	bus           *events.Bus
	logger        *slog.Logger
	encoderLogger *slog.Logger

	mu     sync.Mutex // guards Start/Stop transitions
	active atomic.Bool

	pipeMu sync.Mutex // guards stdin write vs teardown close
	stdin  io.WriteCloser

	params       Params
	cmd          *exec.Cmd
	procDone     chan error
	stopAutosend chan struct{}
	autosendDone chan struct{}
}

// NewPipeline creates an idle pipeline over the given (serialized) scene
// adapter. encoderLogger receives the re-leveled FFmpeg output.
func NewPipeline(adapter scene.Adapter, bus *events.Bus, logger, encoderLogger *slog.Logger) *Pipeline {
	return &Pipeline{
		adapter:       adapter,
		bus:           bus,
		logger:        logger,
		encoderLogger: encoderLogger,
	}
}

// Active reports whether an encoder run is in progress.
func (pl *Pipeline) Active() bool {
	return pl.active.Load()
}

// Autosend reports whether the active run pushes frames on a timer.
func (pl *Pipeline) Autosend() bool {
	return pl.active.Load() && pl.params.Autosend
}

// Start launches the encoder for p. Width and height are taken from the
// scene's current viewport; the capture resolution is pinned to them for
// the whole run. Returns ErrAlreadyStreaming if a run is active and
// ErrLaunch if the subprocess could not start.
func (pl *Pipeline) Start(p Params) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if pl.active.Load() {
		return ErrAlreadyStreaming
	}

	p.Width, p.Height = pl.adapter.ViewportSize()
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: viewport is %dx%d", ErrLaunch, p.Width, p.Height)
	}
	if p.FFmpegBin == "" {
		p.FFmpegBin = "ffmpeg"
	}

	args := BuildArgs(p)
	cmd := exec.Command(p.FFmpegBin, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	pl.logger.Info("encoder started",
		"pid", cmd.Process.Pid,
		"resolution", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"fps", p.FPS,
		"bitrate_mbit", p.BitrateMbit,
		"opaque", p.Opaque,
		"autosend", p.Autosend,
		"target", fmt.Sprintf("%s:%d", p.ClientIP, p.Port))

	pl.params = p
	pl.cmd = cmd
	pl.stdin = stdin
	pl.procDone = make(chan error, 1)
	go func() {
		pl.procDone <- cmd.Wait()
	}()
	go relayEncoderLog(stderr, pl.encoderLogger)

	pl.adapter.CaptureWillStart()
	pl.active.Store(true)

	if p.Autosend {
		pl.stopAutosend = make(chan struct{})
		pl.autosendDone = make(chan struct{})
		interval := time.Duration(float64(time.Second) / float64(p.FPS))
		go pl.autosendLoop(interval)
	} else {
		pl.stopAutosend = nil
		pl.autosendDone = nil
	}

	pl.bus.Publish(events.StreamingStartedEvent{
		FPS:      p.FPS,
		Bitrate:  p.BitrateMbit,
		Autosend: p.Autosend,
		Width:    p.Width,
		Height:   p.Height,
	})
	return nil
}

// PushFrame captures one viewport frame and writes it to the encoder.
// If the host viewport has drifted from the pinned streaming resolution,
// the capture resolution is re-registered before the pixels are read.
// A write failure leaves the pipeline for the caller to tear down.
func (pl *Pipeline) PushFrame(trigger string) error {
	if !pl.active.Load() {
		return ErrNotStreaming
	}

	if w, h := pl.adapter.ViewportSize(); w != pl.params.Width || h != pl.params.Height {
		pl.logger.Debug("viewport resized, re-pinning capture resolution",
			"viewport", fmt.Sprintf("%dx%d", w, h),
			"stream", fmt.Sprintf("%dx%d", pl.params.Width, pl.params.Height))
		pl.adapter.SetCaptureResolution(pl.params.Width, pl.params.Height)
	}

	frame := pl.adapter.CaptureFrame()

	pl.pipeMu.Lock()
	defer pl.pipeMu.Unlock()
	if pl.stdin == nil {
		return ErrNotStreaming
	}
	if _, err := pl.stdin.Write(frame); err != nil {
		pl.logger.Warn("encoder write failed", "error", err)
		return fmt.Errorf("%w: %v", ErrNotStreaming, err)
	}

	metrics.CountFrame(trigger, len(frame))
	return nil
}

// Stop tears the pipeline down: stops the autosend loop, closes the
// encoder's stdin, waits for the process to exit, and restores the
// scene's capture state. Safe to call when idle and safe to call twice.
func (pl *Pipeline) Stop(reason string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if !pl.active.Load() {
		return
	}
	pl.active.Store(false)

	if pl.stopAutosend != nil {
		close(pl.stopAutosend)
	}

	pl.pipeMu.Lock()
	if pl.stdin != nil {
		pl.stdin.Close()
		pl.stdin = nil
	}
	pl.pipeMu.Unlock()

	if pl.autosendDone != nil {
		<-pl.autosendDone
	}

	pl.waitForExit()
	pl.adapter.CaptureDidEnd()

	pl.logger.Info("encoder stopped", "reason", reason)
	pl.bus.Publish(events.StreamingStoppedEvent{Reason: reason})
}

// waitForExit waits for the encoder to exit after its stdin closed,
// escalating to SIGKILL if it lingers.
func (pl *Pipeline) waitForExit() {
	select {
	case err := <-pl.procDone:
		pl.logExit(err)
		return
	case <-time.After(gracefulExitTimeout):
		pl.logger.Warn("encoder did not exit after stdin close, killing", "timeout", gracefulExitTimeout)
	}

	if pl.cmd.Process != nil {
		if err := pl.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			pl.logger.Error("failed to kill encoder", "error", err)
		}
	}
	select {
	case err := <-pl.procDone:
		pl.logExit(err)
	case <-time.After(killExitTimeout):
		pl.logger.Error("encoder did not exit after kill")
	}
}

func (pl *Pipeline) logExit(err error) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		pl.logger.Info("encoder exited", "exit_code", exitErr.ExitCode())
		return
	}
	if err != nil {
		pl.logger.Warn("encoder exited", "error", err)
		return
	}
	pl.logger.Debug("encoder exited cleanly")
}

// autosendLoop pushes frames at the target rate. Each sleep is anchored
// to an absolute deadline; after an oversleep the schedule resynchronizes
// to now+interval instead of bursting catch-up frames. Push errors are
// not reported to the client in autosend mode.
func (pl *Pipeline) autosendLoop(interval time.Duration) {
	defer close(pl.autosendDone)

	next := time.Now().Add(interval)
	for {
		sleep, following := nextDeadline(next, time.Now(), interval)
		next = following

		select {
		case <-pl.stopAutosend:
			return
		case <-time.After(sleep):
		}

		if err := pl.PushFrame(TriggerAutosend); err != nil {
			go pl.Stop("autosend frame write failed")
			return
		}
	}
}

// nextDeadline computes how long the autosend loop should sleep before
// the next frame and the deadline that follows it. A deadline already in
// the past resynchronizes to now+interval.
func nextDeadline(next, now time.Time, interval time.Duration) (sleep time.Duration, following time.Time) {
	if next.After(now) {
		return next.Sub(now), next.Add(interval)
	}
	return 0, now.Add(interval)
}
