// Package shortcut detects global key combinations across evdev keyboards:
// it tracks the union of held keys, evaluates a target combination on every
// transition, and fires activation/deactivation callbacks exactly once per
// edge, debounced per direction.
package shortcut

import (
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"

	"keyhold/keymap"
	"keyhold/log"
)

// MatchPolicy controls how a combination compares against the held keys.
type MatchPolicy int

const (
	// Exact requires the pressed set to equal the target. Single-key
	// shortcuts use it so a held modifier does not false-trigger.
	Exact MatchPolicy = iota
	// Subset requires every target key to be held, extra keys allowed.
	// Modifier-plus-extra combos are common, so multi-key shortcuts
	// tolerate unrelated keys.
	Subset
)

func (p MatchPolicy) String() string {
	if p == Exact {
		return "exact"
	}
	return "subset"
}

// DefaultKey is the fail-open fallback when a combination string yields no
// usable keys: the engine always has some valid target.
const DefaultKey = evdev.KEY_F12

// Combination is an immutable target key set plus its derived match policy.
type Combination struct {
	spec   string
	keys   map[evdev.EvCode]struct{}
	policy MatchPolicy
}

// ParseCombination parses a spec like "ctrl+shift+d" or "<f12>".
// Case-insensitive; enclosing angle brackets are stripped; unresolvable
// tokens are logged and skipped. A spec that resolves to nothing falls back
// to DefaultKey.
func ParseCombination(spec string) *Combination {
	raw := strings.ToLower(strings.TrimSpace(spec))
	raw = strings.NewReplacer("<", "", ">", "").Replace(raw)

	keys := make(map[evdev.EvCode]struct{})
	for _, part := range strings.Split(raw, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, ok := keymap.Resolve(part)
		if !ok {
			log.Warnf("could not parse key %q in %q", part, spec)
			continue
		}
		keys[code] = struct{}{}
	}

	if len(keys) == 0 {
		log.Warnf("could not parse combination %q, defaulting to %s", spec, keymap.Name(DefaultKey))
		keys[DefaultKey] = struct{}{}
	}

	policy := Subset
	if len(keys) == 1 {
		policy = Exact
	}
	return &Combination{spec: spec, keys: keys, policy: policy}
}

// Matches reports whether pressed satisfies the combination under its
// policy: set equality for Exact, target ⊆ pressed for Subset.
func (c *Combination) Matches(pressed map[evdev.EvCode]struct{}) bool {
	if c.policy == Exact && len(pressed) != len(c.keys) {
		return false
	}
	return c.Held(pressed)
}

// Held reports whether every target key is currently pressed, regardless
// of policy. The release path uses it: any policy's activation ends once
// the target set is no longer fully held.
func (c *Combination) Held(pressed map[evdev.EvCode]struct{}) bool {
	for k := range c.keys {
		if _, ok := pressed[k]; !ok {
			return false
		}
	}
	return true
}

// Spec returns the original combination string.
func (c *Combination) Spec() string { return c.spec }

// Policy returns the derived match policy.
func (c *Combination) Policy() MatchPolicy { return c.policy }

// Len returns the number of target keys.
func (c *Combination) Len() int { return len(c.keys) }

// Keys returns the canonical target key names, sorted.
func (c *Combination) Keys() []string {
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, keymap.Name(k))
	}
	sort.Strings(out)
	return out
}
