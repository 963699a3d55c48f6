package shortcut

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"keyhold/device"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	activated   chan struct{}
	deactivated chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		activated:   make(chan struct{}, 16),
		deactivated: make(chan struct{}, 16),
	}
}

func waitFired(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func expectSilent(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(100 * time.Millisecond):
	}
}

// newTestEngine wires a recorder and a fake clock; the state machine is
// driven synchronously via process, without Start.
func newTestEngine(spec string) (*Engine, *recorder, *fakeClock) {
	rec := newRecorder()
	e := New(Config{
		Combination:  spec,
		OnActivate:   func() { rec.activated <- struct{}{} },
		OnDeactivate: func() { rec.deactivated <- struct{}{} },
	})
	clock := newFakeClock()
	e.now = clock.now
	return e, rec, clock
}

func (e *Engine) down(code evdev.EvCode) { e.process(device.Event{Code: code, Dir: device.Down}) }
func (e *Engine) up(code evdev.EvCode)   { e.process(device.Event{Code: code, Dir: device.Up}) }

func TestActivateAndReleaseSingleKey(t *testing.T) {
	e, rec, _ := newTestEngine("<f12>")

	e.down(evdev.KEY_F12)
	waitFired(t, rec.activated, "activation")

	e.up(evdev.KEY_F12)
	waitFired(t, rec.deactivated, "deactivation")
}

func TestExtraKeyBlocksSingleKeyTarget(t *testing.T) {
	e, rec, _ := newTestEngine("<f12>")

	e.down(evdev.KEY_LEFTSHIFT)
	e.down(evdev.KEY_F12)
	expectSilent(t, rec.activated, "activation with extra key held")
}

func TestSubsetToleratesExtraKeys(t *testing.T) {
	e, rec, _ := newTestEngine("ctrl+alt+d")

	e.down(evdev.KEY_LEFTCTRL)
	e.down(evdev.KEY_LEFTALT)
	e.down(evdev.KEY_LEFTSHIFT) // unrelated
	e.down(evdev.KEY_D)
	waitFired(t, rec.activated, "activation")
}

func TestRepeatedDownIsIdempotent(t *testing.T) {
	e, rec, _ := newTestEngine("<f12>")

	e.down(evdev.KEY_F12)
	waitFired(t, rec.activated, "activation")

	// Autorepeat or a second keyboard holding the same key.
	e.down(evdev.KEY_F12)
	e.down(evdev.KEY_F12)
	expectSilent(t, rec.activated, "re-fire while active")

	e.up(evdev.KEY_F12)
	waitFired(t, rec.deactivated, "deactivation")
	expectSilent(t, rec.deactivated, "second deactivation")
}

func TestDebounceSuppressesRapidRetrigger(t *testing.T) {
	e, rec, clock := newTestEngine("<f12>")

	e.down(evdev.KEY_F12)
	waitFired(t, rec.activated, "first activation")
	e.up(evdev.KEY_F12)
	waitFired(t, rec.deactivated, "first deactivation")

	// Re-press inside the 500ms window: suppressed, silently.
	clock.advance(100 * time.Millisecond)
	e.down(evdev.KEY_F12)
	expectSilent(t, rec.activated, "activation inside debounce window")
	e.up(evdev.KEY_F12)
	expectSilent(t, rec.deactivated, "deactivation after suppressed press")

	// Outside the window it triggers again.
	clock.advance(600 * time.Millisecond)
	e.down(evdev.KEY_F12)
	waitFired(t, rec.activated, "activation after debounce window")
}

func TestReleaseOfNonTargetKeyKeepsActive(t *testing.T) {
	e, rec, _ := newTestEngine("ctrl+d")

	e.down(evdev.KEY_LEFTCTRL)
	e.down(evdev.KEY_D)
	waitFired(t, rec.activated, "activation")

	e.down(evdev.KEY_LEFTSHIFT)
	e.up(evdev.KEY_LEFTSHIFT) // target still fully held
	expectSilent(t, rec.deactivated, "deactivation on non-target release")

	if st := e.Status(); !st.Active {
		t.Error("combination should still be active")
	}

	e.up(evdev.KEY_D)
	waitFired(t, rec.deactivated, "deactivation on target release")
}

func TestNonMatchingDownResetsWithoutDeactivation(t *testing.T) {
	// Faithful behavior: a Down that breaks an Exact match drops the
	// activation silently. The deactivation callback never fires.
	e, rec, clock := newTestEngine("<f12>")

	e.down(evdev.KEY_F12)
	waitFired(t, rec.activated, "activation")

	e.down(evdev.KEY_LEFTSHIFT)
	expectSilent(t, rec.deactivated, "deactivation on conservative reset")
	if st := e.Status(); st.Active {
		t.Error("state should be inactive after non-matching down")
	}

	e.up(evdev.KEY_F12)
	e.up(evdev.KEY_LEFTSHIFT)
	expectSilent(t, rec.deactivated, "deactivation after reset")

	clock.advance(600 * time.Millisecond)
	e.down(evdev.KEY_F12)
	waitFired(t, rec.activated, "re-activation after reset")
}

func TestUpdateCombinationSwapsTarget(t *testing.T) {
	e, rec, _ := newTestEngine("<f12>")

	e.UpdateCombination("ctrl+d")

	e.down(evdev.KEY_F12)
	expectSilent(t, rec.activated, "activation on the old target")

	e.down(evdev.KEY_LEFTCTRL)
	e.down(evdev.KEY_D)
	waitFired(t, rec.activated, "activation on the new target")
}

func TestUpdateCombinationKeepsPressedKeys(t *testing.T) {
	e, _, _ := newTestEngine("<f12>")

	e.down(evdev.KEY_LEFTCTRL)
	e.UpdateCombination("ctrl+d")

	st := e.Status()
	if !reflect.DeepEqual(st.PressedKeys, []string{"LEFTCTRL"}) {
		t.Errorf("PressedKeys = %v, want [LEFTCTRL]", st.PressedKeys)
	}
	if st.Combination != "ctrl+d" {
		t.Errorf("Combination = %q, want ctrl+d", st.Combination)
	}
}

func TestSetCallbacks(t *testing.T) {
	e, rec, clock := newTestEngine("<f12>")

	replaced := make(chan struct{}, 1)
	e.SetCallbacks(func() { replaced <- struct{}{} }, nil)

	e.down(evdev.KEY_F12)
	waitFired(t, replaced, "replaced activation callback")
	expectSilent(t, rec.activated, "original activation callback")

	clock.advance(600 * time.Millisecond)
	e.up(evdev.KEY_F12) // nil deactivation callback must not panic
	expectSilent(t, rec.deactivated, "original deactivation callback")
}

// --- lifecycle tests, driven through real fake devices ---

func newRunningEngine(t *testing.T, spec string, devs ...device.Device) (*Engine, *recorder) {
	t.Helper()
	rec := newRecorder()
	e := New(Config{
		Combination:  spec,
		OnActivate:   func() { rec.activated <- struct{}{} },
		OnDeactivate: func() { rec.deactivated <- struct{}{} },
	})
	e.registry = device.NewRegistryWith(func(string) []device.Device { return devs })
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Stop)
	return e, rec
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting until %s", what)
}

func TestStartNoDevices(t *testing.T) {
	e := New(Config{Combination: "<f12>"})
	e.registry = device.NewRegistryWith(func(string) []device.Device { return nil })

	if err := e.Start(); !errors.Is(err, ErrNoDevices) {
		t.Fatalf("Start = %v, want ErrNoDevices", err)
	}
	if e.Running() {
		t.Error("engine should not be running")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	kbd := device.NewFake("/dev/input/event1")
	e, _ := newRunningEngine(t, "<f12>", kbd)

	if err := e.Start(); err != nil {
		t.Fatalf("second Start = %v, want nil", err)
	}
	if !e.Running() {
		t.Fatal("engine should be running")
	}

	e.Stop()
	e.Stop()
	if e.Running() {
		t.Error("engine should be stopped")
	}
}

func TestEndToEndTrigger(t *testing.T) {
	kbd := device.NewFake("/dev/input/event1")
	_, rec := newRunningEngine(t, "<f12>", kbd)

	kbd.Press(evdev.KEY_F12)
	waitFired(t, rec.activated, "activation")
	kbd.Release(evdev.KEY_F12)
	waitFired(t, rec.deactivated, "deactivation")
}

func TestDeviceEvictionLeavesOthersWorking(t *testing.T) {
	flaky := device.NewFake("/dev/input/event1")
	steady := device.NewFake("/dev/input/event2")
	e, rec := newRunningEngine(t, "<f12>", flaky, steady)

	flaky.Fail(errors.New("device vanished"))
	waitUntil(t, "flaky device is evicted", func() bool {
		return e.Status().DeviceCount == 1
	})

	steady.Press(evdev.KEY_F12)
	waitFired(t, rec.activated, "activation after eviction")
	steady.Release(evdev.KEY_F12)
	waitFired(t, rec.deactivated, "deactivation after eviction")
}

func TestStopClearsState(t *testing.T) {
	kbd := device.NewFake("/dev/input/event1")
	e, _ := newRunningEngine(t, "ctrl+d", kbd)

	kbd.Press(evdev.KEY_LEFTCTRL)
	waitUntil(t, "key is tracked", func() bool {
		return len(e.Status().PressedKeys) == 1
	})

	e.Stop()
	st := e.Status()
	if st.Running {
		t.Error("Running should be false after Stop")
	}
	if st.Active {
		t.Error("Active should be false after Stop")
	}
	if len(st.PressedKeys) != 0 {
		t.Errorf("PressedKeys = %v, want empty", st.PressedKeys)
	}
}

func TestStatusSnapshot(t *testing.T) {
	kbd := device.NewFake("/dev/input/event1")
	e, _ := newRunningEngine(t, "ctrl+d", kbd)

	kbd.Press(evdev.KEY_LEFTCTRL)
	waitUntil(t, "pressed key visible", func() bool {
		return len(e.Status().PressedKeys) == 1
	})

	st := e.Status()
	if !st.Running {
		t.Error("Running should be true")
	}
	if st.Active {
		t.Error("Active should be false with only ctrl held")
	}
	if st.Combination != "ctrl+d" {
		t.Errorf("Combination = %q, want ctrl+d", st.Combination)
	}
	if want := []string{"D", "LEFTCTRL"}; !reflect.DeepEqual(st.TargetKeys, want) {
		t.Errorf("TargetKeys = %v, want %v", st.TargetKeys, want)
	}
	if want := []string{"LEFTCTRL"}; !reflect.DeepEqual(st.PressedKeys, want) {
		t.Errorf("PressedKeys = %v, want %v", st.PressedKeys, want)
	}
	if st.DeviceCount != 1 {
		t.Errorf("DeviceCount = %d, want 1", st.DeviceCount)
	}
}
