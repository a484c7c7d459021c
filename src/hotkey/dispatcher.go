package hotkey

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrRegistrationConflict reports that a binding is already claimed by
// another action.
var ErrRegistrationConflict = errors.New("hotkey binding already registered")

// BindingStore persists per-action binding overrides. Load returns the stored
// binding for the action, or def when none is stored.
type BindingStore interface {
	Load(action Action, def Binding) Binding
	Save(action Action, b Binding) error
}

// nopStore keeps bindings in memory only.
type nopStore struct{}

func (nopStore) Load(_ Action, def Binding) Binding { return def }
func (nopStore) Save(Action, Binding) error         { return nil }

type registration struct {
	handle  Handle
	binding Binding
	handler func()
}

// Dispatcher owns the action-to-binding table on top of a Hook. Handlers run
// through the invoke function so callers can marshal them onto their event
// loop; a nil invoke runs them on the hook's pump goroutine.
type Dispatcher struct {
	mu         sync.Mutex
	hook       Hook
	store      BindingStore
	invoke     func(func())
	installed  bool
	nextHandle Handle
	regs       map[Action]*registration
	byHandle   map[Handle]Action
}

func NewDispatcher(hook Hook, store BindingStore, invoke func(func())) *Dispatcher {
	if store == nil {
		store = nopStore{}
	}
	if invoke == nil {
		invoke = func(f func()) { f() }
	}
	return &Dispatcher{
		hook:     hook,
		store:    store,
		invoke:   invoke,
		regs:     map[Action]*registration{},
		byHandle: map[Handle]Action{},
	}
}

// Register arms an action with its default binding, letting a stored override
// win. Re-registering an action replaces its handler and binding. The hook is
// installed lazily on the first successful registration.
func (d *Dispatcher) Register(action Action, def Binding, handler func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.store.Load(action, def)
	if owner, ok := d.conflict(action, b); ok {
		return fmt.Errorf("%w: %s is bound to %q", ErrRegistrationConflict, b, owner)
	}
	if err := d.ensureInstalled(); err != nil {
		return err
	}
	if old, ok := d.regs[action]; ok {
		d.hook.Unregister(old.handle)
		delete(d.byHandle, old.handle)
	}

	d.nextHandle++
	h := d.nextHandle
	if err := d.hook.Register(h, b, d.fire); err != nil {
		return fmt.Errorf("failed to register %s for %q: %w", b, action, err)
	}
	d.regs[action] = &registration{handle: h, binding: b, handler: handler}
	d.byHandle[h] = action
	log.Printf("HOTKEY: registered %s for %q", b, action)
	return nil
}

// Unregister releases one action. Unknown actions are a no-op. The hook is
// uninstalled once the table empties.
func (d *Dispatcher) Unregister(action Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unregisterLocked(action)
	d.releaseIfEmpty()
}

// UnregisterAll releases every action and the hook. Safe to call repeatedly;
// the shutdown path and signal handler may both reach it.
func (d *Dispatcher) UnregisterAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for action := range d.regs {
		d.unregisterLocked(action)
	}
	d.releaseIfEmpty()
}

// UpdateBinding rebinds a registered action and persists the new chord. On
// conflict or hook failure the previous binding is restored, so the table
// never drops an action.
func (d *Dispatcher) UpdateBinding(action Action, nb Binding) error {
	return d.update(action, nb, true)
}

// Rebind is UpdateBinding without persistence, for applying bindings that
// were already saved externally (e.g. a reloaded bindings file).
func (d *Dispatcher) Rebind(action Action, nb Binding) error {
	return d.update(action, nb, false)
}

func (d *Dispatcher) update(action Action, nb Binding, persist bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	reg, ok := d.regs[action]
	if !ok {
		return fmt.Errorf("action %q is not registered", action)
	}
	if reg.binding == nb {
		return nil
	}
	if owner, conflicted := d.conflict(action, nb); conflicted {
		return fmt.Errorf("%w: %s is bound to %q", ErrRegistrationConflict, nb, owner)
	}

	d.hook.Unregister(reg.handle)
	delete(d.byHandle, reg.handle)

	// Persist before arming the new chord. A Save failure must leave both
	// the hook and the file on the previous binding, otherwise the next
	// restart would silently revert a chord the user sees working.
	if persist {
		if err := d.store.Save(action, nb); err != nil {
			log.Printf("HOTKEY: failed to persist %s for %q: %v", nb, action, err)
			d.restoreLocked(action, reg)
			return fmt.Errorf("failed to persist binding for %q: %w", action, err)
		}
	}

	d.nextHandle++
	h := d.nextHandle
	if err := d.hook.Register(h, nb, d.fire); err != nil {
		if persist {
			if serr := d.store.Save(action, reg.binding); serr != nil {
				log.Printf("HOTKEY: failed to restore stored %s for %q: %v", reg.binding, action, serr)
			}
		}
		d.restoreLocked(action, reg)
		return fmt.Errorf("failed to rebind %q to %s: %w", action, nb, err)
	}

	old := reg.binding
	reg.handle = h
	reg.binding = nb
	d.byHandle[h] = action
	log.Printf("HOTKEY: rebound %q from %s to %s", action, old, nb)
	return nil
}

// restoreLocked re-arms reg's previous chord so the action stays reachable
// after a failed update. Callers hold d.mu.
func (d *Dispatcher) restoreLocked(action Action, reg *registration) {
	d.nextHandle++
	rh := d.nextHandle
	if rerr := d.hook.Register(rh, reg.binding, d.fire); rerr != nil {
		log.Printf("HOTKEY: rollback of %q to %s failed: %v", action, reg.binding, rerr)
		delete(d.regs, action)
		return
	}
	reg.handle = rh
	d.byHandle[rh] = action
}

// Bindings returns a snapshot of the live action table.
func (d *Dispatcher) Bindings() map[Action]Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[Action]Binding, len(d.regs))
	for action, reg := range d.regs {
		out[action] = reg.binding
	}
	return out
}

func (d *Dispatcher) fire(h Handle) {
	d.mu.Lock()
	action, ok := d.byHandle[h]
	if !ok {
		d.mu.Unlock()
		return
	}
	handler := d.regs[action].handler
	d.mu.Unlock()
	d.invoke(handler)
}

func (d *Dispatcher) conflict(self Action, b Binding) (Action, bool) {
	for action, reg := range d.regs {
		if action != self && reg.binding == b {
			return action, true
		}
	}
	return "", false
}

func (d *Dispatcher) ensureInstalled() error {
	if d.installed {
		return nil
	}
	if err := d.hook.Install(); err != nil {
		return err
	}
	d.installed = true
	return nil
}

func (d *Dispatcher) unregisterLocked(action Action) {
	reg, ok := d.regs[action]
	if !ok {
		return
	}
	d.hook.Unregister(reg.handle)
	delete(d.byHandle, reg.handle)
	delete(d.regs, action)
	log.Printf("HOTKEY: unregistered %q", action)
}

func (d *Dispatcher) releaseIfEmpty() {
	if d.installed && len(d.regs) == 0 {
		d.hook.Uninstall()
		d.installed = false
	}
}
