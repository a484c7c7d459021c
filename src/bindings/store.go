// Package bindings persists hotkey binding overrides to a YAML file and
// watches it for external edits.
package bindings

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"snipclip/src/hotkey"
)

// storedBinding is the on-disk shape of one chord.
type storedBinding struct {
	KeyCode      uint16 `yaml:"keyCode"`
	ModifierMask uint8  `yaml:"modifierMask"`
}

// Store is a file-backed hotkey.BindingStore. A missing file means no
// overrides; Save creates the file and its directory on first write.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// DefaultPath places the bindings file in the per-user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config dir: %w", err)
	}
	return filepath.Join(dir, "snipclip", "bindings.yaml"), nil
}

// Load returns the stored override for action, or def when the file is
// missing, unreadable, or has no entry. A corrupt file must not take the
// hotkeys down with it.
func (s *Store) Load(action hotkey.Action, def hotkey.Binding) hotkey.Binding {
	all, err := s.readAll()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("BINDINGS: failed to read %s: %v", s.path, err)
		}
		return def
	}
	sb, ok := all[string(action)]
	if !ok || sb.KeyCode == 0 {
		return def
	}
	return hotkey.Binding{KeyCode: sb.KeyCode, Mods: hotkey.Modifiers(sb.ModifierMask)}
}

// Save writes the override for action, preserving other entries. The file is
// replaced atomically so the watcher never observes a half-written document.
func (s *Store) Save(action hotkey.Action, b hotkey.Binding) error {
	all, err := s.readAll()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read existing bindings: %w", err)
	}
	if all == nil {
		all = map[string]storedBinding{}
	}
	all[string(action)] = storedBinding{KeyCode: b.KeyCode, ModifierMask: uint8(b.Mods)}

	data, err := yaml.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to encode bindings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create bindings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".bindings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp bindings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write bindings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close bindings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace bindings file: %w", err)
	}
	return nil
}

// All returns every stored override, keyed by action name.
func (s *Store) All() (map[hotkey.Action]hotkey.Binding, error) {
	raw, err := s.readAll()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[hotkey.Action]hotkey.Binding{}, nil
		}
		return nil, err
	}
	out := make(map[hotkey.Action]hotkey.Binding, len(raw))
	for name, sb := range raw {
		if sb.KeyCode == 0 {
			continue
		}
		out[hotkey.Action(name)] = hotkey.Binding{
			KeyCode: sb.KeyCode,
			Mods:    hotkey.Modifiers(sb.ModifierMask),
		}
	}
	return out, nil
}

func (s *Store) readAll() (map[string]storedBinding, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var all map[string]storedBinding
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return all, nil
}
