package codegen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendant/events-compiler/internal/process"
)

func TestRenderWritesTranslationUnit(t *testing.T) {
	tmp := t.TempDir()
	r := NewTemplateRenderer(tmp)

	snap := process.Snapshot{
		GameID:    "platformer",
		GameName:  "Platformer",
		SceneID:   "level-1",
		SceneName: "Level 1",
		Events:    []byte("scene.SetBackgroundColor(0, 0, 0);\nscene.Pause();\n"),
	}

	path, err := r.Render(context.Background(), snap)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := filepath.Join(tmp, "platformer", "level-1.cpp"); path != want {
		t.Fatalf("Render path = %s, want %s", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	src := string(data)
	for _, want := range []string{
		`#include "GDL/RuntimeScene.h"`,
		`extern "C" void GDSceneEvents_level_1(RuntimeScene & scene)`,
		"    scene.SetBackgroundColor(0, 0, 0);\n    scene.Pause();\n}",
		`scene "Level 1"`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q:\n%s", want, src)
		}
	}
}

func TestRenderEmptyEvents(t *testing.T) {
	path, err := NewTemplateRenderer(t.TempDir()).Render(context.Background(), process.Snapshot{SceneID: "menu"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != "default" {
		t.Fatalf("expected default game directory, got %s", path)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "(RuntimeScene & scene)\n{\n}") {
		t.Fatalf("expected empty function body:\n%s", data)
	}
}

func TestRenderRejectsMissingScene(t *testing.T) {
	if _, err := NewTemplateRenderer(t.TempDir()).Render(context.Background(), process.Snapshot{}); err == nil {
		t.Fatal("expected error for snapshot without scene id")
	}
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTemplateRenderer(t.TempDir()).Render(ctx, process.Snapshot{SceneID: "a"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		id   process.SceneID
		want string
	}{
		{"level1", "GDSceneEvents_level1"},
		{"level 2/boss", "GDSceneEvents_level_2_boss"},
		{"é", "GDSceneEvents__"},
	}
	for _, tt := range tests {
		if got := Symbol(tt.id); got != tt.want {
			t.Errorf("Symbol(%q) = %s, want %s", tt.id, got, tt.want)
		}
	}
}
