package shortcut

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"keyhold/device"
	"keyhold/keymap"
	"keyhold/log"
)

// ErrNoDevices means discovery found no usable keyboard. Non-fatal:
// Start can be retried after permissions or hardware change.
var ErrNoDevices = errors.New("no keyboard devices available")

const (
	// defaultDebounce is the minimum gap between two triggers in the
	// same direction. Activation and deactivation keep separate clocks:
	// press-and-hold and release are independent edges and must not
	// block each other.
	defaultDebounce = 500 * time.Millisecond

	// stopTimeout bounds the wait for the event loop to exit before
	// devices are closed, so a close never races an in-flight read.
	stopTimeout = time.Second
)

// Config configures an Engine.
type Config struct {
	// Combination is the shortcut spec, e.g. "ctrl+shift+d" or "<f12>".
	Combination string
	// DevicePath restricts capture to one input device. Empty means all
	// accessible keyboards.
	DevicePath string
	// Debounce overrides the 500ms default; zero keeps the default.
	Debounce time.Duration
	// OnActivate fires once when the combination becomes fully held.
	OnActivate func()
	// OnDeactivate fires once when a held combination is broken.
	OnDeactivate func()
}

// message is what device readers hand to the event loop: either one key
// transition or a terminal read error for that device.
type message struct {
	dev device.Device
	ev  device.Event
	err error
}

// Engine is the shortcut state machine. A reader goroutine per device
// feeds one channel; a single event-loop goroutine consumes it and is the
// only writer of the pressed set, the active flag, and the debounce
// clocks. Start, Stop, UpdateCombination, SetCallbacks, and Status are
// safe to call from any goroutine.
type Engine struct {
	registry   *device.Registry
	dispatcher *dispatcher
	devicePath string
	debounce   time.Duration
	now        func() time.Time

	combo atomic.Pointer[Combination]

	mu      sync.Mutex // lifecycle
	running bool
	stop    chan struct{}
	done    chan struct{}
	events  chan message

	stateMu          sync.Mutex // pressed/active snapshot + callbacks
	pressed          map[evdev.EvCode]struct{}
	active           bool
	lastActivation   time.Time
	lastDeactivation time.Time
	onActivate       func()
	onDeactivate     func()
}

// New builds an engine; devices are discovered lazily on Start.
func New(cfg Config) *Engine {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	e := &Engine{
		registry:     device.NewRegistry(),
		dispatcher:   newDispatcher(),
		devicePath:   cfg.DevicePath,
		debounce:     debounce,
		now:          time.Now,
		pressed:      make(map[evdev.EvCode]struct{}),
		onActivate:   cfg.OnActivate,
		onDeactivate: cfg.OnDeactivate,
	}
	e.combo.Store(ParseCombination(cfg.Combination))
	return e
}

// Start discovers keyboards when the registry is empty and launches the
// event loop. Idempotent: a running engine stays running. Returns
// ErrNoDevices when no usable keyboard exists after discovery.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	if e.registry.Count() == 0 {
		n := e.registry.Discover(e.devicePath)
		log.Infof("discovered %d keyboard device(s)", n)
	}
	if e.registry.Count() == 0 {
		return ErrNoDevices
	}

	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.events = make(chan message, 64)

	for _, d := range e.registry.Devices() {
		e.startReader(d)
	}
	go e.loop()
	e.running = true

	combo := e.combo.Load()
	log.Infof("listening for %s on %d device(s)", combo.Spec(), e.registry.Count())
	return nil
}

// startReader pumps one device into the event channel. A read error is
// forwarded once so the loop can evict the device; the goroutine then
// exits. The stop case keeps readers from leaking when the loop is gone.
func (e *Engine) startReader(d device.Device) {
	stop, events := e.stop, e.events
	go func() {
		for {
			ev, err := d.Read()
			select {
			case events <- message{dev: d, ev: ev, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

func (e *Engine) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.stop:
			return
		case msg := <-e.events:
			if msg.err != nil {
				log.Warnf("lost device %s: %v", msg.dev.ID(), msg.err)
				e.registry.Remove(msg.dev)
				continue
			}
			e.process(msg.ev)
		}
	}
}

// process advances the state machine by one key transition. Only the
// event loop calls this while running; tests drive it directly.
func (e *Engine) process(ev device.Event) {
	switch ev.Dir {
	case device.Down:
		e.keyDown(ev.Code)
	case device.Up:
		e.keyUp(ev.Code)
	}
}

func (e *Engine) keyDown(code evdev.EvCode) {
	combo := e.combo.Load()

	e.stateMu.Lock()
	e.pressed[code] = struct{}{}

	var fire func()
	if combo.Matches(e.pressed) {
		now := e.now()
		// Trigger only on the inactive->active edge, outside the
		// debounce window. Key autorepeat and a second keyboard
		// holding the same keys land in the already-active no-op.
		if !e.active && now.Sub(e.lastActivation) > e.debounce {
			e.lastActivation = now
			e.active = true
			fire = e.onActivate
		}
	} else {
		// Conservative reset: a superset that stopped matching (Exact
		// policy) drops the activation without a deactivation edge.
		e.active = false
	}
	e.stateMu.Unlock()

	if fire != nil {
		log.Shortcut("shortcut activated", combo.Spec())
		e.dispatcher.fire("activation", fire)
	}
}

func (e *Engine) keyUp(code evdev.EvCode) {
	combo := e.combo.Load()

	e.stateMu.Lock()
	wasActive := e.active
	delete(e.pressed, code)

	var fire func()
	if wasActive && !combo.Held(e.pressed) {
		now := e.now()
		if now.Sub(e.lastDeactivation) > e.debounce {
			e.lastDeactivation = now
			e.active = false
			fire = e.onDeactivate
		}
	}
	e.stateMu.Unlock()

	if fire != nil {
		log.Shortcut("shortcut released", combo.Spec())
		e.dispatcher.fire("deactivation", fire)
	}
}

// Stop signals the event loop, waits bounded for it to exit, closes all
// devices, and clears key state. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	close(e.stop)
	select {
	case <-e.done:
	case <-time.After(stopTimeout):
		log.Warn("event loop did not exit in time")
	}

	e.registry.CloseAll()

	e.stateMu.Lock()
	e.pressed = make(map[evdev.EvCode]struct{})
	e.active = false
	e.stateMu.Unlock()

	if !e.dispatcher.drain(stopTimeout) {
		log.Warn("callbacks still running at stop")
	}
	e.running = false
}

// Running reports whether Start succeeded and the event loop is alive.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// UpdateCombination atomically replaces the target combination without a
// restart. The pressed set is intentionally left alone: physically held
// keys stay tracked, and a chord in flight against the old target is
// simply abandoned.
func (e *Engine) UpdateCombination(spec string) {
	c := ParseCombination(spec)
	e.combo.Store(c)
	log.Infof("shortcut updated to %s (keys: %v)", c.Spec(), c.Keys())
}

// SetCallbacks replaces both callbacks. Nil disables the corresponding
// edge.
func (e *Engine) SetCallbacks(onActivate, onDeactivate func()) {
	e.stateMu.Lock()
	e.onActivate = onActivate
	e.onDeactivate = onDeactivate
	e.stateMu.Unlock()
}

// Status is a point-in-time diagnostic snapshot.
type Status struct {
	Running     bool     `json:"running"`
	Active      bool     `json:"active"`
	Combination string   `json:"combination"`
	TargetKeys  []string `json:"target_keys"`
	PressedKeys []string `json:"pressed_keys"`
	DeviceCount int      `json:"device_count"`
}

// Status returns a snapshot of the engine state. Key sets are copied
// under the state lock; the loop never exposes its maps directly.
func (e *Engine) Status() Status {
	combo := e.combo.Load()
	st := Status{
		Running:     e.Running(),
		Combination: combo.Spec(),
		TargetKeys:  combo.Keys(),
		DeviceCount: e.registry.Count(),
	}

	e.stateMu.Lock()
	st.Active = e.active
	st.PressedKeys = make([]string, 0, len(e.pressed))
	for code := range e.pressed {
		st.PressedKeys = append(st.PressedKeys, keymap.Name(code))
	}
	e.stateMu.Unlock()

	sort.Strings(st.PressedKeys)
	return st
}
