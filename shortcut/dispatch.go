package shortcut

import (
	"sync"
	"time"

	"keyhold/log"
)

// dispatcher runs callbacks off the event loop so a slow or blocking
// callback never stalls event consumption. Each firing gets its own
// goroutine; panics are contained at this boundary and logged.
type dispatcher struct {
	wg sync.WaitGroup
}

func newDispatcher() *dispatcher { return &dispatcher{} }

func (d *dispatcher) fire(name string, fn func()) {
	if fn == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("%s callback panicked: %v", name, r)
			}
		}()
		fn()
	}()
}

// drain waits for in-flight callbacks, up to timeout. Returns false if
// some callback was still running when the timeout expired.
func (d *dispatcher) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
