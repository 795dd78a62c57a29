package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifest = `
id: platformer
name: Platformer
header_dirs:
  - include
  - /opt/sfml/include
scenes:
  - id: menu
    name: Main menu
    events: scenes/menu.events
  - id: level1
    events: scenes/level1.events
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scenes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenes", "menu.events"), []byte("scene.Pause();"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenes", "level1.events"), []byte("scene.Resume();"), 0o644))
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeProject(t)
	dir := filepath.Dir(path)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "platformer", string(p.Game().ID()))
	assert.Equal(t, "Platformer", p.Game().Name())
	assert.Equal(t, []string{filepath.Join(dir, "include"), "/opt/sfml/include"}, p.HeaderDirs())

	scenes := p.Scenes()
	require.Len(t, scenes, 2)
	assert.Equal(t, "Main menu", scenes[0].Name())
	assert.Equal(t, "level1", scenes[1].Name(), "name defaults to id")
	assert.Equal(t, []string{filepath.Join(dir, "scenes")}, p.EventDirs())
}

func TestSceneReload(t *testing.T) {
	path := writeProject(t)
	p, err := Load(path)
	require.NoError(t, err)

	s, err := p.Lookup("menu")
	require.NoError(t, err)
	assert.Nil(t, s.Events(), "events are only read on Reload")

	require.NoError(t, s.Reload())
	assert.Equal(t, "scene.Pause();", string(s.Events()))

	require.NoError(t, os.Remove(s.Path()))
	assert.Error(t, s.Reload())
	assert.Equal(t, "scene.Pause();", string(s.Events()), "failed reload keeps previous events")
}

func TestLookupAndRemove(t *testing.T) {
	p, err := Load(writeProject(t))
	require.NoError(t, err)

	s, err := p.Lookup("level1")
	require.NoError(t, err)
	found, ok := p.SceneForPath(s.Path())
	require.True(t, ok)
	assert.Same(t, s, found)

	assert.True(t, p.Remove("level1"))
	assert.False(t, p.Remove("level1"))

	_, err = p.Lookup("level1")
	assert.True(t, errors.Is(err, ErrSceneNotFound))
	_, ok = p.SceneForPath(s.Path())
	assert.False(t, ok)
	assert.Len(t, p.Scenes(), 1)
}

func TestParseRejectsInvalidManifests(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing id", "scenes: [{id: a, events: a.events}]"},
		{"no scenes", "id: g"},
		{"scene without id", "id: g\nscenes: [{events: a.events}]"},
		{"scene without events", "id: g\nscenes: [{id: a}]"},
		{"duplicate scene", "id: g\nscenes: [{id: a, events: a.events}, {id: a, events: b.events}]"},
		{"not yaml", "id: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "/tmp")
			assert.Error(t, err)
		})
	}
}
