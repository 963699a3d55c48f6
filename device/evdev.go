package device

import (
	"errors"
	"fmt"
	"io/fs"

	evdev "github.com/holoplot/go-evdev"

	"keyhold/log"
)

const (
	keyPress   = 1
	keyRelease = 0
)

// keyboardProbe is the capability probe: a device counts as a keyboard if
// it claims at least one of these alphabetic keys. Heuristic, not a
// guarantee — some macro pads qualify.
var keyboardProbe = []evdev.EvCode{evdev.KEY_A, evdev.KEY_S, evdev.KEY_D, evdev.KEY_F}

// Source is an evdev-backed keyboard device.
type Source struct {
	dev  *evdev.InputDevice
	path string
	name string
}

// Open opens path and accepts it only if it passes the keyboard heuristic
// and a grab probe. The probe acquires the exclusive grab and releases it
// immediately: it filters out devices the process lacks permission for
// without holding an exclusive lock on anyone's keyboard.
func Open(path string) (*Source, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !isKeyboard(dev) {
		dev.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotKeyboard, path)
	}
	if err := dev.Grab(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("%w: grab %s: %v", ErrAccessDenied, path, err)
	}
	if err := dev.Ungrab(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("ungrab %s: %w", path, err)
	}

	name, err := dev.Name()
	if err != nil {
		name = path
	}
	return &Source{dev: dev, path: path, name: name}, nil
}

func (s *Source) ID() string   { return s.path }
func (s *Source) Name() string { return s.name }

// Read blocks until the next key press or release on this device.
// Autorepeat events are dropped here; held keys are tracked by the engine.
func (s *Source) Read() (Event, error) {
	for {
		ev, err := s.dev.ReadOne()
		if err != nil {
			return Event{}, fmt.Errorf("read %s: %w", s.path, err)
		}
		if ev.Type != evdev.EV_KEY {
			continue
		}
		switch ev.Value {
		case keyPress:
			return Event{Code: ev.Code, Dir: Down}, nil
		case keyRelease:
			return Event{Code: ev.Code, Dir: Up}, nil
		}
	}
}

func (s *Source) Close() error { return s.dev.Close() }

// probeResult classifies why an Open attempt failed. Grab denial means
// the device is a keyboard we can see but not capture; open denial means
// we cannot even tell what the device is.
type probeResult int

const (
	probeOK probeResult = iota
	probeNotKeyboard
	probeGrabDenied
	probeOpenDenied
	probeOther
)

func classify(err error) probeResult {
	switch {
	case err == nil:
		return probeOK
	case errors.Is(err, ErrNotKeyboard):
		return probeNotKeyboard
	case errors.Is(err, ErrAccessDenied):
		return probeGrabDenied
	case errors.Is(err, fs.ErrPermission):
		return probeOpenDenied
	default:
		return probeOther
	}
}

func isKeyboard(dev *evdev.InputDevice) bool {
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		for _, probe := range keyboardProbe {
			if code == probe {
				return true
			}
		}
	}
	return false
}

// enumerateKeyboards opens every accessible keyboard on the host. When
// filterPath names a device that opens cleanly, only that device is used;
// an unavailable filter path logs a warning and falls back to unfiltered
// discovery.
func enumerateKeyboards(filterPath string) []Device {
	if filterPath != "" {
		src, err := Open(filterPath)
		if err == nil {
			log.Device("device added", src.Name(), src.ID())
			return []Device{src}
		}
		log.Warnf("selected device %s unavailable (%v), falling back to discovery", filterPath, err)
	}

	paths, err := evdev.ListDevicePaths()
	if err != nil {
		log.Errorf("listing input devices: %v", err)
		return nil
	}

	var out []Device
	for _, p := range paths {
		src, err := Open(p.Path)
		if err != nil {
			// Non-keyboards are expected noise. A keyboard we can see
			// but not grab is worth surfacing once per discovery;
			// everything else stays at debug level.
			switch classify(err) {
			case probeGrabDenied:
				log.Warnf("skipping %s: %v", p.Path, err)
			case probeNotKeyboard:
			default:
				log.Debugf("skipping %s: %v", p.Path, err)
			}
			continue
		}
		log.Device("device added", src.Name(), src.ID())
		out = append(out, src)
	}
	return out
}

// KeyboardInfo describes one accessible keyboard for selection UIs.
type KeyboardInfo struct {
	Name string
	Path string
}

// ListKeyboards returns the keyboards the current process can capture.
func ListKeyboards() []KeyboardInfo {
	var infos []KeyboardInfo
	for _, d := range enumerateKeyboards("") {
		src, ok := d.(*Source)
		if !ok {
			continue
		}
		infos = append(infos, KeyboardInfo{Name: src.Name(), Path: src.ID()})
		src.Close()
	}
	return infos
}

// Diagnose checks input device access and returns a status message.
func Diagnose() (string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}

	var keyboards, accessible, openDenied int
	var opened string
	for _, p := range paths {
		src, err := Open(p.Path)
		switch classify(err) {
		case probeOK:
			keyboards++
			accessible++
			if opened == "" {
				opened = p.Path
			}
			src.Close()
		case probeGrabDenied:
			// Confirmed keyboard: the capability check passed before
			// the grab was refused.
			keyboards++
		case probeOpenDenied:
			// Cannot open the node at all, so we cannot tell whether
			// it is a keyboard. Counted separately.
			openDenied++
		}
	}

	if keyboards == 0 {
		if openDenied > 0 {
			return "", fmt.Errorf("cannot open %d input device(s) (run: sudo usermod -aG input $USER, then re-login)", openDenied)
		}
		return "", fmt.Errorf("no keyboard devices found (is the user in the 'input' group?)")
	}
	if accessible == 0 {
		return "", fmt.Errorf("found %d keyboard(s) but cannot capture any (run: sudo usermod -aG input $USER, then re-login)", keyboards)
	}
	return fmt.Sprintf("%d of %d keyboard(s) accessible, opened %s", accessible, keyboards, opened), nil
}
