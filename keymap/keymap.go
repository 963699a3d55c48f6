// Package keymap resolves human-friendly key names to Linux input event
// codes and renders codes back to canonical names.
//
// Resolution is a two-step lookup: a table of friendly aliases (ctrl, win,
// pgup, ...) mapping to canonical KEY_* names, then evdev's complete
// generated code table. Unrecognized names fall back to being upper-cased
// and prefixed with KEY_, so any canonical name (key_comma, COMPOSE,
// 102ND, ...) works directly without an alias entry.
package keymap

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// aliases maps friendly key names to canonical KEY_* names. Left-side
// modifiers win for the bare names (ctrl, alt, shift, super).
var aliases = map[string]string{
	// Left-side modifiers
	"ctrl": "KEY_LEFTCTRL", "control": "KEY_LEFTCTRL", "lctrl": "KEY_LEFTCTRL",
	"alt": "KEY_LEFTALT", "lalt": "KEY_LEFTALT",
	"shift": "KEY_LEFTSHIFT", "lshift": "KEY_LEFTSHIFT",
	"super": "KEY_LEFTMETA", "meta": "KEY_LEFTMETA", "lsuper": "KEY_LEFTMETA",
	"win": "KEY_LEFTMETA", "windows": "KEY_LEFTMETA", "cmd": "KEY_LEFTMETA",

	// Right-side modifiers
	"rctrl": "KEY_RIGHTCTRL", "rightctrl": "KEY_RIGHTCTRL",
	"ralt": "KEY_RIGHTALT", "rightalt": "KEY_RIGHTALT",
	"rshift": "KEY_RIGHTSHIFT", "rightshift": "KEY_RIGHTSHIFT",
	"rsuper": "KEY_RIGHTMETA", "rightsuper": "KEY_RIGHTMETA", "rmeta": "KEY_RIGHTMETA",

	// Common special keys
	"enter": "KEY_ENTER", "return": "KEY_ENTER",
	"backspace": "KEY_BACKSPACE", "bksp": "KEY_BACKSPACE",
	"tab":  "KEY_TAB",
	"caps": "KEY_CAPSLOCK", "capslock": "KEY_CAPSLOCK",
	"esc": "KEY_ESC", "escape": "KEY_ESC",
	"space": "KEY_SPACE", "spacebar": "KEY_SPACE",
	"delete": "KEY_DELETE", "del": "KEY_DELETE",
	"insert": "KEY_INSERT", "ins": "KEY_INSERT",
	"home":   "KEY_HOME",
	"end":    "KEY_END",
	"pageup": "KEY_PAGEUP", "pgup": "KEY_PAGEUP",
	"pagedown": "KEY_PAGEDOWN", "pgdn": "KEY_PAGEDOWN", "pgdown": "KEY_PAGEDOWN",

	// Arrow keys
	"up": "KEY_UP", "uparrow": "KEY_UP",
	"down": "KEY_DOWN", "downarrow": "KEY_DOWN",
	"left": "KEY_LEFT", "leftarrow": "KEY_LEFT",
	"right": "KEY_RIGHT", "rightarrow": "KEY_RIGHT",

	// Lock keys
	"numlock":    "KEY_NUMLOCK",
	"scrolllock": "KEY_SCROLLLOCK", "scroll": "KEY_SCROLLLOCK",

	// Numpad keys
	"kp0": "KEY_KP0", "kp1": "KEY_KP1", "kp2": "KEY_KP2", "kp3": "KEY_KP3",
	"kp4": "KEY_KP4", "kp5": "KEY_KP5", "kp6": "KEY_KP6", "kp7": "KEY_KP7",
	"kp8": "KEY_KP8", "kp9": "KEY_KP9",
	"kpenter": "KEY_KPENTER", "kpplus": "KEY_KPPLUS", "kpminus": "KEY_KPMINUS",
	"kpmultiply": "KEY_KPASTERISK", "kpdivide": "KEY_KPSLASH",
	"kpdot": "KEY_KPDOT", "kpperiod": "KEY_KPDOT",

	// Media keys
	"mute": "KEY_MUTE", "volumemute": "KEY_MUTE",
	"volumeup": "KEY_VOLUMEUP", "volup": "KEY_VOLUMEUP",
	"volumedown": "KEY_VOLUMEDOWN", "voldown": "KEY_VOLUMEDOWN",
	"play": "KEY_PLAYPAUSE", "playpause": "KEY_PLAYPAUSE",
	"stop": "KEY_STOPCD", "mediastop": "KEY_STOPCD",
	"nextsong": "KEY_NEXTSONG", "next": "KEY_NEXTSONG",
	"previoussong": "KEY_PREVIOUSSONG", "prev": "KEY_PREVIOUSSONG",

	// Browser keys (keyboards with browser control buttons)
	"browser":        "KEY_WWW",
	"browserback":    "KEY_BACK",
	"browserforward": "KEY_FORWARD",
	"refresh":        "KEY_REFRESH",
	"browsersearch":  "KEY_SEARCH",
	"favorites":      "KEY_BOOKMARKS",

	// System keys
	"menu":  "KEY_MENU",
	"print": "KEY_PRINT", "printscreen": "KEY_SYSRQ", "prtsc": "KEY_SYSRQ",
	"pause": "KEY_PAUSE", "break": "KEY_PAUSE",
}

// names maps each code in evdev's generated table back to one canonical
// name. The kernel defines synonyms for a few codes (KEY_MUTE is also
// KEY_MIN_INTERESTING); the shortest name wins, lexicographic order
// breaking ties, so rendering is deterministic.
var names = make(map[evdev.EvCode]string, len(evdev.KEYFromString))

func init() {
	for name, code := range evdev.KEYFromString {
		if current, ok := names[code]; ok && !preferred(name, current) {
			continue
		}
		names[code] = name
	}
}

func preferred(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Resolve converts a friendly or canonical key name to an event code.
// Returns false if the name does not correspond to any known key.
func Resolve(name string) (evdev.EvCode, bool) {
	key := strings.ToLower(strings.TrimSpace(name))

	canonical, ok := aliases[key]
	if !ok {
		canonical = strings.ToUpper(key)
		if !strings.HasPrefix(canonical, "KEY_") {
			canonical = "KEY_" + canonical
		}
	}

	code, ok := evdev.KEYFromString[canonical]
	return code, ok
}

// Name renders an event code as its canonical name without the KEY_
// prefix. Codes outside the table render as KEY_<n> so they stay
// identifiable in logs and status output.
func Name(code evdev.EvCode) string {
	if n, ok := names[code]; ok {
		return strings.TrimPrefix(n, "KEY_")
	}
	return fmt.Sprintf("KEY_%d", code)
}

// Normalize lower-cases a key name and strips all spaces, for consistent
// comparison of user-supplied names.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "")
}
