// ABOUTME: File-backed runtime settings (model, permission mode).
// ABOUTME: Updates rewrite the settings file atomically under a mutex.

package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// PermissionMode controls how tool permission prompts behave.
type PermissionMode string

const (
	PermissionPrompt    PermissionMode = "prompt"
	PermissionAcceptAll PermissionMode = "accept_all"
	PermissionDenyAll   PermissionMode = "deny_all"
)

// Settings are the user-tunable runtime values.
type Settings struct {
	Model          string         `json:"model"`
	PermissionMode PermissionMode `json:"permission_mode"`
}

// Store persists settings to a single JSON file.
type Store struct {
	mu       sync.Mutex
	path     string
	settings Settings
}

// NewStore loads settings from path, falling back to the given defaults
// when the file is missing or unparsable.
func NewStore(path string, defaults Settings) (*Store, error) {
	s := &Store{path: path, settings: defaults}
	if s.settings.PermissionMode == "" {
		s.settings.PermissionMode = PermissionPrompt
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var loaded Settings
		if json.Unmarshal(data, &loaded) == nil && loaded.Model != "" {
			s.settings = loaded
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update applies and persists new settings. Empty fields keep their
// current values.
func (s *Store) Update(next Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next.Model != "" {
		s.settings.Model = next.Model
	}
	if next.PermissionMode != "" {
		switch next.PermissionMode {
		case PermissionPrompt, PermissionAcceptAll, PermissionDenyAll:
			s.settings.PermissionMode = next.PermissionMode
		default:
			return s.settings, fmt.Errorf("invalid permission mode: %q", next.PermissionMode)
		}
	}

	if err := s.persistLocked(); err != nil {
		return s.settings, err
	}
	return s.settings, nil
}

// persistLocked writes the settings file via temp-and-rename.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming settings: %w", err)
	}
	return nil
}
