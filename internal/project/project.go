// Package project loads the YAML manifest describing a game and its scenes, and
// provides the Game and Scene values handed to the events compiler.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tendant/events-compiler/internal/process"
)

// ErrSceneNotFound is returned for unknown or removed scenes.
var ErrSceneNotFound = errors.New("scene not found")

type Manifest struct {
	ID         string      `yaml:"id"`
	Name       string      `yaml:"name"`
	HeaderDirs []string    `yaml:"header_dirs"`
	Scenes     []SceneSpec `yaml:"scenes"`
}

type SceneSpec struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Events string `yaml:"events"`
}

type Game struct {
	id   process.GameID
	name string
}

func (g *Game) ID() process.GameID { return g.id }
func (g *Game) Name() string       { return g.name }

// Scene serves the last loaded copy of its events file.
type Scene struct {
	id   process.SceneID
	name string
	path string

	mu     sync.RWMutex
	events []byte
}

func (s *Scene) ID() process.SceneID { return s.id }
func (s *Scene) Name() string        { return s.name }
func (s *Scene) Path() string        { return s.path }

func (s *Scene) Events() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// Reload reads the events file again. On error the previous events are kept.
func (s *Scene) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read events for scene %s: %w", s.id, err)
	}
	s.mu.Lock()
	s.events = data
	s.mu.Unlock()
	return nil
}

// Project is a loaded manifest.
type Project struct {
	game       *Game
	headerDirs []string

	mu     sync.RWMutex
	order  []process.SceneID
	scenes map[process.SceneID]*Scene
	byPath map[string]*Scene
}

// Load reads and validates a manifest. Scene events paths are resolved against
// the manifest's directory.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

func Parse(data []byte, baseDir string) (*Project, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("manifest: id is required")
	}
	if len(m.Scenes) == 0 {
		return nil, fmt.Errorf("manifest %s: no scenes", m.ID)
	}

	p := &Project{
		game:   &Game{id: process.GameID(m.ID), name: m.Name},
		scenes: make(map[process.SceneID]*Scene, len(m.Scenes)),
		byPath: make(map[string]*Scene, len(m.Scenes)),
	}
	if p.game.name == "" {
		p.game.name = m.ID
	}
	for _, dir := range m.HeaderDirs {
		p.headerDirs = append(p.headerDirs, resolve(baseDir, dir))
	}

	for i, entry := range m.Scenes {
		if entry.ID == "" {
			return nil, fmt.Errorf("manifest %s: scene %d has no id", m.ID, i)
		}
		if entry.Events == "" {
			return nil, fmt.Errorf("manifest %s: scene %s has no events file", m.ID, entry.ID)
		}
		id := process.SceneID(entry.ID)
		if _, dup := p.scenes[id]; dup {
			return nil, fmt.Errorf("manifest %s: duplicate scene id %s", m.ID, entry.ID)
		}
		name := entry.Name
		if name == "" {
			name = entry.ID
		}
		s := &Scene{id: id, name: name, path: resolve(baseDir, entry.Events)}
		p.scenes[id] = s
		p.byPath[s.path] = s
		p.order = append(p.order, id)
	}
	return p, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(baseDir, path)
}

func (p *Project) Game() *Game { return p.game }

func (p *Project) HeaderDirs() []string { return append([]string(nil), p.headerDirs...) }

// Scenes returns the scenes in manifest order.
func (p *Project) Scenes() []*Scene {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Scene, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.scenes[id])
	}
	return out
}

func (p *Project) Lookup(id process.SceneID) (*Scene, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.scenes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, id)
	}
	return s, nil
}

// SceneForPath finds the scene whose events file is path.
func (p *Project) SceneForPath(path string) (*Scene, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byPath[filepath.Clean(path)]
	return s, ok
}

// Remove forgets a destroyed scene; later lookups return ErrSceneNotFound.
func (p *Project) Remove(id process.SceneID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.scenes[id]
	if !ok {
		return false
	}
	delete(p.scenes, id)
	delete(p.byPath, s.path)
	for i, other := range p.order {
		if other == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// EventDirs returns the directories holding scene events files, without duplicates.
func (p *Project) EventDirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool)
	var dirs []string
	for _, id := range p.order {
		dir := filepath.Dir(p.scenes[id].path)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
