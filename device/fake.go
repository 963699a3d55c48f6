package device

import (
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

// Fake is an in-memory Device for tests.
type Fake struct {
	id     string
	events chan Event
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func NewFake(id string) *Fake {
	return &Fake{
		id:     id,
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *Fake) ID() string { return f.id }

func (f *Fake) Read() (Event, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case err := <-f.errs:
		return Event{}, err
	case <-f.closed:
		return Event{}, ErrClosed
	}
}

func (f *Fake) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *Fake) Press(code evdev.EvCode)   { f.events <- Event{Code: code, Dir: Down} }
func (f *Fake) Release(code evdev.EvCode) { f.events <- Event{Code: code, Dir: Up} }

// Fail makes the next Read return err, simulating a vanished device.
func (f *Fake) Fail(err error) { f.errs <- err }
