// ABOUTME: Tests for the settings store.
// ABOUTME: Covers defaults, persistence round-trips, and validation.

package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := NewStore(path, Settings{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	got := s.Get()
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, PermissionPrompt, got.PermissionMode)

	// The defaults are written out so the file exists from first boot.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestUpdatePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := NewStore(path, Settings{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = s.Update(Settings{Model: "gpt-4.1", PermissionMode: PermissionAcceptAll})
	require.NoError(t, err)

	reloaded, err := NewStore(path, Settings{Model: "ignored-default"})
	require.NoError(t, err)
	got := reloaded.Get()
	assert.Equal(t, "gpt-4.1", got.Model)
	assert.Equal(t, PermissionAcceptAll, got.PermissionMode)
}

func TestUpdateEmptyFieldsKeepCurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := NewStore(path, Settings{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	got, err := s.Update(Settings{PermissionMode: PermissionDenyAll})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, PermissionDenyAll, got.PermissionMode)
}

func TestUpdateRejectsInvalidPermissionMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := NewStore(path, Settings{Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = s.Update(Settings{PermissionMode: "whatever"})
	assert.Error(t, err)
	assert.Equal(t, PermissionPrompt, s.Get().PermissionMode)
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	s, err := NewStore(path, Settings{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", s.Get().Model)
}
