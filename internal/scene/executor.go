package scene

import "sync"

// InvokeFunc runs fn on the host application's main thread and returns once
// fn has completed. Hosts supply their own bridge (Maya's
// executeInMainThreadWithResult equivalent); a nil InvokeFunc calls fn
// directly, for hosts without a thread-affine API and for tests.
type InvokeFunc func(fn func())

// Executor serializes host-thread execution. Worker goroutines (command
// loop, autosend loop) block here instead of interleaving scene access.
type Executor struct {
	mu     sync.Mutex
	invoke InvokeFunc
}

// NewExecutor creates an executor around the host's main-thread bridge.
func NewExecutor(invoke InvokeFunc) *Executor {
	if invoke == nil {
		invoke = func(fn func()) { fn() }
	}
	return &Executor{invoke: invoke}
}

// Exec runs fn on the host thread and waits for it to finish. Concurrent
// callers are queued, never interleaved.
func (e *Executor) Exec(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invoke(fn)
}
