package scene

import (
	"sync"
	"testing"
)

func TestExecutorSerializesConcurrentCallers(t *testing.T) {
	var active, maxActive int
	var stateMu sync.Mutex

	exec := NewExecutor(func(fn func()) {
		stateMu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		stateMu.Unlock()

		fn()

		stateMu.Lock()
		active--
		stateMu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				exec.Exec(func() {})
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent host-thread invocations = %d, want 1", maxActive)
	}
}

func TestExecutorNilInvokeRunsDirectly(t *testing.T) {
	exec := NewExecutor(nil)
	ran := false
	exec.Exec(func() { ran = true })
	if !ran {
		t.Error("Exec did not run the function")
	}
}

func TestExecutorWaitsForResult(t *testing.T) {
	exec := NewExecutor(nil)
	value := 0
	exec.Exec(func() { value = 42 })
	if value != 42 {
		t.Errorf("value = %d, want 42 (Exec must block until fn completes)", value)
	}
}
