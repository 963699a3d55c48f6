// Package device abstracts keyboard input sources and owns the set of
// active devices. The evdev-backed Source reads /dev/input; the Registry
// keeps discovery, eviction, and teardown in one place so a single failing
// peripheral never disturbs the others.
package device

import (
	"errors"

	evdev "github.com/holoplot/go-evdev"
)

var (
	// ErrNotKeyboard marks devices that fail the keyboard heuristic.
	ErrNotKeyboard = errors.New("not a keyboard device")
	// ErrAccessDenied marks devices the process cannot grab.
	ErrAccessDenied = errors.New("device access denied")
	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("device closed")
)

// Direction is the half of a key transition.
type Direction int

const (
	Down Direction = iota
	Up
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// Event is one key transition read from an input device.
type Event struct {
	Code evdev.EvCode
	Dir  Direction
}

// Device yields key transitions from one input source. Read blocks until
// the next transition and fails permanently once the underlying device is
// gone; callers are expected to evict the device on error.
type Device interface {
	ID() string
	Read() (Event, error)
	Close() error
}
