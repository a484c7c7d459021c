package hotkey

import (
	"fmt"
	"sort"
	"strings"
)

// Action names a capture workflow a hotkey can trigger.
type Action string

const (
	ActionFullScreen Action = "fullscreen"
	ActionRegion     Action = "region"
	ActionWindow     Action = "window"
)

// Modifiers is a bitset of chord modifier keys.
type Modifiers uint8

const (
	ModCtrl Modifiers = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

func (m Modifiers) Has(mod Modifiers) bool { return m&mod != 0 }

// Binding is one parsed hotkey chord: a set of modifiers plus exactly one
// non-modifier key, stored as its Windows virtual key code.
type Binding struct {
	KeyCode uint16
	Mods    Modifiers
}

func (b Binding) IsZero() bool { return b.KeyCode == 0 && b.Mods == 0 }

// ParseBinding converts a chord string like "Ctrl+Alt+F" into a Binding.
// Parsing is case-insensitive; modifiers may appear in any order but exactly
// one non-modifier key is required.
func ParseBinding(s string) (Binding, error) {
	var b Binding
	haveKey := false
	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return Binding{}, fmt.Errorf("invalid hotkey %q: empty component", s)
		}
		switch part {
		case "ctrl", "control":
			b.Mods |= ModCtrl
		case "shift":
			b.Mods |= ModShift
		case "alt", "option":
			b.Mods |= ModAlt
		case "win", "cmd", "super":
			b.Mods |= ModSuper
		default:
			code, ok := keyCodes[part]
			if !ok {
				return Binding{}, fmt.Errorf("invalid hotkey %q: unknown key %q", s, part)
			}
			if haveKey {
				return Binding{}, fmt.Errorf("invalid hotkey %q: more than one non-modifier key", s)
			}
			b.KeyCode = code
			haveKey = true
		}
	}
	if !haveKey {
		return Binding{}, fmt.Errorf("invalid hotkey %q: no non-modifier key", s)
	}
	return b, nil
}

// String renders the binding in canonical Ctrl+Shift+Alt+Super+Key order.
func (b Binding) String() string {
	var parts []string
	if b.Mods.Has(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if b.Mods.Has(ModShift) {
		parts = append(parts, "Shift")
	}
	if b.Mods.Has(ModAlt) {
		parts = append(parts, "Alt")
	}
	if b.Mods.Has(ModSuper) {
		parts = append(parts, "Super")
	}
	name, ok := keyNames[b.KeyCode]
	if !ok {
		name = fmt.Sprintf("0x%02X", b.KeyCode)
	}
	parts = append(parts, name)
	return strings.Join(parts, "+")
}

// rawcodeGroups expands the binding into chord groups for the low-level hook:
// one group per modifier (left and right variants both satisfy it) plus one
// for the key itself. The chord is down when every group has a pressed member.
func (b Binding) rawcodeGroups() [][]uint16 {
	var groups [][]uint16
	if b.Mods.Has(ModCtrl) {
		groups = append(groups, []uint16{162, 163}) // VK_LCONTROL, VK_RCONTROL
	}
	if b.Mods.Has(ModShift) {
		groups = append(groups, []uint16{160, 161}) // VK_LSHIFT, VK_RSHIFT
	}
	if b.Mods.Has(ModAlt) {
		groups = append(groups, []uint16{164, 165}) // VK_LMENU, VK_RMENU
	}
	if b.Mods.Has(ModSuper) {
		groups = append(groups, []uint16{91, 92}) // VK_LWIN, VK_RWIN
	}
	groups = append(groups, []uint16{b.KeyCode})
	return groups
}

// keyCodes maps lowercase key names to Windows virtual key codes. Aliases
// ("esc"/"escape") share a code; keyNames holds the canonical spelling.
var keyCodes = buildKeyCodes()

var keyNames = buildKeyNames()

func buildKeyCodes() map[string]uint16 {
	m := map[string]uint16{
		"space":       32,
		"enter":       13,
		"return":      13,
		"esc":         27,
		"escape":      27,
		"tab":         9,
		"backspace":   8,
		"delete":      46,
		"del":         46,
		"insert":      45,
		"ins":         45,
		"home":        36,
		"end":         35,
		"pageup":      33,
		"pgup":        33,
		"pagedown":    34,
		"pgdn":        34,
		"left":        37,
		"up":          38,
		"right":       39,
		"down":        40,
		"printscreen": 44,
	}
	for c := 'a'; c <= 'z'; c++ {
		m[string(c)] = uint16(c - 'a' + 65)
	}
	for c := '0'; c <= '9'; c++ {
		m[string(c)] = uint16(c)
	}
	for i := 1; i <= 24; i++ {
		m[fmt.Sprintf("f%d", i)] = uint16(111 + i) // VK_F1..VK_F24
	}
	return m
}

func buildKeyNames() map[uint16]string {
	// Shortest name wins so aliases resolve to "Esc" rather than "Escape";
	// ties break alphabetically for determinism.
	byCode := map[uint16][]string{}
	for name, code := range keyCodes {
		byCode[code] = append(byCode[code], name)
	}
	m := make(map[uint16]string, len(byCode))
	for code, names := range byCode {
		sort.Slice(names, func(i, j int) bool {
			if len(names[i]) != len(names[j]) {
				return len(names[i]) < len(names[j])
			}
			return names[i] < names[j]
		})
		m[code] = canonicalCase(names[0])
	}
	return m
}

func canonicalCase(name string) string {
	if len(name) == 1 {
		return strings.ToUpper(name)
	}
	if name[0] == 'f' && len(name) <= 3 {
		return strings.ToUpper(name)
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
