package device

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want probeResult
	}{
		{"nil", nil, probeOK},
		{"not a keyboard", fmt.Errorf("%w: /dev/input/event3", ErrNotKeyboard), probeNotKeyboard},
		{"grab denied", fmt.Errorf("%w: grab /dev/input/event3: device busy", ErrAccessDenied), probeGrabDenied},
		{"open denied", fmt.Errorf("open /dev/input/event3: %w", fs.ErrPermission), probeOpenDenied},
		{"read failure", errors.New("read /dev/input/event3: unexpected EOF"), probeOther},
	}
	for _, c := range cases {
		if got := classify(c.err); got != c.want {
			t.Errorf("classify(%s) = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestClassifyOpenDeniedIsNotKeyboard(t *testing.T) {
	// An unreadable device node says nothing about what the device is:
	// it must not be mistaken for a keyboard the grab probe rejected.
	err := fmt.Errorf("open /dev/input/event3: %w", fs.ErrPermission)
	if classify(err) == probeGrabDenied {
		t.Error("open failure classified as grab denial")
	}
	if errors.Is(err, ErrAccessDenied) {
		t.Error("open failure should not carry ErrAccessDenied")
	}
}
