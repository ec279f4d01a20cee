package hotkey

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Combo is a parsed hotkey such as "Ctrl+Alt+T". Keys are matched by Windows
// virtual-key rawcodes as reported by gohook.
type Combo struct {
	spec string
	keys []comboKey
}

type comboKey struct {
	name     string
	rawcodes []uint16
}

func (c Combo) String() string { return c.spec }

// Names returns the normalized key names in order.
func (c Combo) Names() []string {
	names := make([]string, len(c.keys))
	for i, k := range c.keys {
		names[i] = k.name
	}
	return names
}

// Parse accepts "+"-separated key names, case-insensitive.
func Parse(spec string) (Combo, error) {
	c := Combo{spec: spec}
	for _, name := range parseHotkey(spec) {
		if name == "" {
			return Combo{}, fmt.Errorf("hotkey %q: empty key name", spec)
		}
		rawcodes := keyNameToRawcodes(name)
		if len(rawcodes) == 0 {
			return Combo{}, fmt.Errorf("hotkey %q: unknown key %q", spec, name)
		}
		c.keys = append(c.keys, comboKey{name: name, rawcodes: rawcodes})
	}
	if len(c.keys) == 0 {
		return Combo{}, fmt.Errorf("hotkey %q: no keys", spec)
	}
	return c, nil
}

// Listen registers the combo with a global keyboard hook and calls callback
// each time every key of the combo is held down together. The hook is
// released when ctx is cancelled.
func Listen(ctx context.Context, spec string, callback func()) error {
	combo, err := Parse(spec)
	if err != nil {
		return err
	}
	log.Printf("Hotkey listener configured for: %s (%v)", combo, combo.Names())

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		defer gohook.End()

		m := newMatcher(combo)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evChan:
				if !ok {
					log.Printf("Event channel closed")
					return
				}
				if m.handle(ev.Kind, ev.Rawcode) {
					log.Printf("Hotkey activated: %s", combo)
					if callback != nil {
						callback()
					}
				}
			}
		}
	}()
	return nil
}

// matcher tracks which keys of a combo are held.
type matcher struct {
	mu      sync.Mutex
	combo   Combo
	pressed []bool
}

func newMatcher(c Combo) *matcher {
	return &matcher{combo: c, pressed: make([]bool, len(c.keys))}
}

// handle feeds one key event and reports whether the combo just completed.
func (m *matcher) handle(kind uint8, rawcode uint16) bool {
	if kind != gohook.KeyDown && kind != gohook.KeyUp {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	down := kind == gohook.KeyDown
	for i, k := range m.combo.keys {
		for _, rc := range k.rawcodes {
			if rc == rawcode {
				m.pressed[i] = down
				break
			}
		}
	}
	if !down {
		return false
	}
	for _, p := range m.pressed {
		if !p {
			return false
		}
	}
	for i := range m.pressed {
		m.pressed[i] = false
	}
	return true
}

func parseHotkey(spec string) []string {
	parts := strings.Split(strings.ToLower(spec), "+")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "control":
			part = "ctrl"
		case "option":
			part = "alt"
		case "win", "super":
			part = "cmd"
		}
		keys = append(keys, part)
	}
	return keys
}

var namedKeys = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual-key codes. Modifiers
// map to both their left and right variants.
func keyNameToRawcodes(name string) []uint16 {
	if codes, ok := namedKeys[name]; ok {
		return codes
	}
	if len(name) == 1 {
		switch c := name[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 48}
		}
	}
	var n int
	if _, err := fmt.Sscanf(name, "f%d", &n); err == nil && n >= 1 && n <= 24 && name == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(111 + n)} // VK_F1 is 112
	}
	return nil
}
