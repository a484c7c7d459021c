package hotkey

import (
	"fmt"
	"log"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Handle identifies one live registration with the low-level hook.
type Handle uint64

// Hook is the low-level global key hook. Install starts event delivery;
// Register arms a chord that calls fire from the hook's pump goroutine each
// time the chord completes. Implementations must tolerate Uninstall being
// called more than once.
type Hook interface {
	Install() error
	Uninstall()
	Register(h Handle, b Binding, fire func(Handle)) error
	Unregister(h Handle)
}

// chordState tracks per-group pressed flags for one registration. Extra keys
// held beyond the chord do not block a match; only the chord's own groups are
// consulted.
type chordState struct {
	binding Binding
	groups  [][]uint16
	pressed []bool
	fire    func(Handle)
}

func (c *chordState) complete() bool {
	for _, p := range c.pressed {
		if !p {
			return false
		}
	}
	return true
}

func (c *chordState) reset() {
	for i := range c.pressed {
		c.pressed[i] = false
	}
}

// systemHook adapts gohook's process-global event stream to the Hook
// interface. One pump goroutine reads the stream and drives every registered
// chord's state.
type systemHook struct {
	mu        sync.Mutex
	installed bool
	regs      map[Handle]*chordState
}

// NewSystemHook returns the gohook-backed global hook.
func NewSystemHook() Hook {
	return &systemHook{regs: map[Handle]*chordState{}}
}

func (s *systemHook) Install() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.installed {
		return nil
	}
	evChan := gohook.Start()
	if evChan == nil {
		return fmt.Errorf("global key hook failed to start")
	}
	s.installed = true
	go s.pump(evChan)
	log.Printf("HOTKEY: global key hook installed")
	return nil
}

func (s *systemHook) Uninstall() {
	s.mu.Lock()
	if !s.installed {
		s.mu.Unlock()
		return
	}
	s.installed = false
	s.mu.Unlock()
	gohook.End()
	log.Printf("HOTKEY: global key hook uninstalled")
}

func (s *systemHook) Register(h Handle, b Binding, fire func(Handle)) error {
	if b.KeyCode == 0 {
		return fmt.Errorf("cannot register empty binding")
	}
	groups := b.rawcodeGroups()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[h] = &chordState{
		binding: b,
		groups:  groups,
		pressed: make([]bool, len(groups)),
		fire:    fire,
	}
	return nil
}

func (s *systemHook) Unregister(h Handle) {
	s.mu.Lock()
	delete(s.regs, h)
	s.mu.Unlock()
}

// pump consumes gohook events until the channel closes on Uninstall. Chord
// completion resets that chord's state so the keys must be released and
// pressed again to fire twice.
func (s *systemHook) pump(evChan chan gohook.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("HOTKEY: panic in key hook pump: %v", r)
		}
	}()
	for ev := range evChan {
		switch ev.Kind {
		case gohook.KeyDown:
			s.keyDown(ev.Rawcode)
		case gohook.KeyUp:
			s.keyUp(ev.Rawcode)
		}
	}
	log.Printf("HOTKEY: key hook event channel closed")
}

func (s *systemHook) keyDown(rawcode uint16) {
	var fires []func()
	s.mu.Lock()
	for h, reg := range s.regs {
		matched := false
		for i, group := range reg.groups {
			for _, rc := range group {
				if rc == rawcode {
					reg.pressed[i] = true
					matched = true
					break
				}
			}
		}
		if matched && reg.complete() {
			reg.reset()
			handle := h
			fire := reg.fire
			fires = append(fires, func() { fire(handle) })
			log.Printf("HOTKEY: chord %s detected", reg.binding)
		}
	}
	s.mu.Unlock()
	for _, f := range fires {
		f()
	}
}

func (s *systemHook) keyUp(rawcode uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.regs {
		for i, group := range reg.groups {
			for _, rc := range group {
				if rc == rawcode {
					reg.pressed[i] = false
					break
				}
			}
		}
	}
}
