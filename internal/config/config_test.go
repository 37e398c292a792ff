package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaultMatchesModelDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s := Load()
	assert.Equal(t, 120.0, s.BPM)
	assert.Equal(t, "major", s.Scale)
	assert.Equal(t, 440.0, s.TuningA4)
	assert.Equal(t, 480, s.TicksPerBeat)
}

func TestLoadUserOverrideWinsOverDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "tuidaw")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"bpm": 140, "scale": "minor"}`), 0o644))

	s := Load()
	assert.Equal(t, 140.0, s.BPM)
	assert.Equal(t, "minor", s.Scale)
	// Fields absent from the override keep the embedded default.
	assert.Equal(t, 440.0, s.TuningA4)
}

func TestLoadMissingUserFileFallsBackToDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s := Load()
	assert.Equal(t, 120.0, s.BPM)
}

func TestUserConfigPathUnderConfigHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	p, err := UserConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "tuidaw", "config.json"), p)
}
