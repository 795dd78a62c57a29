// Package codegen renders a scene's captured events into a C++ translation unit
// the toolchain can compile.
package codegen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/tendant/events-compiler/internal/process"
)

// Renderer turns a scene snapshot into a source file on disk.
type Renderer interface {
	// Render writes the source file for snap and returns its path
	Render(ctx context.Context, snap process.Snapshot) (string, error)
}

var unitTemplate = template.Must(template.New("unit").Parse(`// Events of scene "{{.SceneName}}" ({{.SceneID}}), game "{{.GameName}}".
// Generated file, changes are overwritten on the next compilation.
{{range .Includes}}#include "{{.}}"
{{end}}
extern "C" void {{.Symbol}}(RuntimeScene & scene)
{
{{.Body}}}
`))

type unit struct {
	SceneID   process.SceneID
	SceneName string
	GameName  string
	Includes  []string
	Symbol    string
	Body      string
}

// TemplateRenderer writes one translation unit per scene under WorkDir/<game>/<scene>.cpp.
type TemplateRenderer struct {
	WorkDir  string
	Includes []string
}

// DefaultIncludes are the runtime headers every events unit needs.
func DefaultIncludes() []string {
	return []string{"GDL/RuntimeScene.h", "GDL/ObjectsConcerned.h", "GDL/CommonInstructions.h"}
}

func NewTemplateRenderer(workDir string) *TemplateRenderer {
	return &TemplateRenderer{WorkDir: workDir, Includes: DefaultIncludes()}
}

func (r *TemplateRenderer) Render(ctx context.Context, snap process.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if snap.SceneID == "" {
		return "", fmt.Errorf("render: snapshot has no scene id")
	}

	var buf bytes.Buffer
	err := unitTemplate.Execute(&buf, unit{
		SceneID:   snap.SceneID,
		SceneName: snap.SceneName,
		GameName:  snap.GameName,
		Includes:  r.Includes,
		Symbol:    Symbol(snap.SceneID),
		Body:      indent(string(snap.Events)),
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	dir := filepath.Join(r.WorkDir, fileSafe(string(snap.GameID)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	path := filepath.Join(dir, fileSafe(string(snap.SceneID))+".cpp")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write source: %w", err)
	}
	return path, nil
}

// Symbol returns the exported entry point name for a scene's events.
func Symbol(id process.SceneID) string {
	var b strings.Builder
	b.WriteString("GDSceneEvents_")
	for _, r := range string(id) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func fileSafe(s string) string {
	if s == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

func indent(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if line != "" {
			b.WriteString("    ")
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
