package scripts

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Runner executes registry scripts by index. The registry can be swapped
// at runtime when the scripts file changes on disk; Labels and Execute
// always see a consistent snapshot.
type Runner struct {
	mu      sync.RWMutex
	scripts []Script
	logger  *slog.Logger
}

// NewRunner creates a Runner over the given registry.
func NewRunner(scripts []Script, logger *slog.Logger) *Runner {
	return &Runner{scripts: scripts, logger: logger}
}

// Replace swaps the registry, used on hot reload.
func (r *Runner) Replace(scripts []Script) {
	r.mu.Lock()
	r.scripts = scripts
	r.mu.Unlock()
	r.logger.Info("script registry replaced", "count", len(scripts))
}

// Labels returns the script labels in registry order.
func (r *Runner) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, len(r.scripts))
	for i, s := range r.scripts {
		labels[i] = s.Label
	}
	return labels
}

// Len returns the number of registered scripts.
func (r *Runner) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scripts)
}

// Execute runs the script at index, substituting the current camera name
// for the selected-camera token. Blocks until the script exits or its
// timeout elapses.
func (r *Runner) Execute(ctx context.Context, index int, currentCamera string) error {
	r.mu.RLock()
	if index < 0 || index >= len(r.scripts) {
		n := len(r.scripts)
		r.mu.RUnlock()
		return fmt.Errorf("script index %d out of range (have %d)", index, n)
	}
	script := r.scripts[index]
	r.mu.RUnlock()

	command := strings.ReplaceAll(script.Command, SelectedCameraToken, currentCamera)

	timeout := time.Duration(script.TimeoutSeconds) * time.Second
	if script.TimeoutSeconds <= 0 {
		timeout = DefaultTimeoutSeconds * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.logger.Debug("executing script", "label", script.Label, "index", index)
	start := time.Now()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Warn("script failed",
			"label", script.Label,
			"error", err,
			"output", strings.TrimSpace(string(output)))
		return fmt.Errorf("script %q failed: %w", script.Label, err)
	}

	r.logger.Info("script completed", "label", script.Label, "duration", time.Since(start))
	return nil
}
