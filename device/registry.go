package device

import (
	"sync"

	"keyhold/log"
)

// Enumerator produces the accessible keyboard devices on the host,
// optionally restricted to one device path.
type Enumerator func(filterPath string) []Device

// Registry owns the active set of input devices. Devices enter through
// Discover and leave through Remove (I/O failure) or CloseAll (stop).
// There is no rediscovery while running: a disconnected device shrinks the
// set until the next stop/start cycle.
type Registry struct {
	mu        sync.Mutex
	devices   []Device
	enumerate Enumerator
}

// NewRegistry returns a registry backed by evdev discovery.
func NewRegistry() *Registry {
	return &Registry{enumerate: enumerateKeyboards}
}

// NewRegistryWith returns a registry with a custom enumerator, for tests.
func NewRegistryWith(enum Enumerator) *Registry {
	return &Registry{enumerate: enum}
}

// Discover replaces the device set with a fresh enumeration and returns
// the new device count.
func (r *Registry) Discover(filterPath string) int {
	devices := r.enumerate(filterPath)
	r.mu.Lock()
	r.devices = devices
	n := len(devices)
	r.mu.Unlock()
	return n
}

// Devices returns a snapshot of the active set.
func (r *Registry) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Count returns the number of active devices.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Remove evicts one device and closes it. Removing a device that is no
// longer in the set is a no-op, so eviction races stay harmless.
func (r *Registry) Remove(d Device) {
	r.mu.Lock()
	found := false
	for i, dev := range r.devices {
		if dev.ID() == d.ID() {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			found = true
			break
		}
	}
	r.mu.Unlock()

	if found {
		d.Close()
		log.Device("device removed", "", d.ID())
	}
}

// CloseAll closes every device and empties the set.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	devices := r.devices
	r.devices = nil
	r.mu.Unlock()

	for _, d := range devices {
		d.Close()
	}
}
