package main

import (
	"fmt"
	"log/slog"

	"github.com/tendant/events-compiler/internal/codegen"
	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/outputlock"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/internal/project"
	"github.com/tendant/events-compiler/internal/toolchain"
)

// startCompiler configures the process-wide compiler for proj and returns it.
// Callers tear it down with compiler.DestroyInstance.
func startCompiler(cfg config, proj *project.Project, logger *slog.Logger, observers ...compiler.Observer) (*compiler.Compiler, error) {
	invoker, err := toolchain.GetInvoker(cfg.CXX, outputlock.Default)
	if err != nil {
		return nil, err
	}

	err = compiler.Configure(compiler.Config{
		Renderer:   codegen.NewTemplateRenderer(cfg.WorkDir),
		Invoker:    invoker,
		HeaderDirs: append(proj.HeaderDirs(), cfg.HeaderDirs...),
		Logger:     logger,
		Observers:  observers,
	})
	if err != nil {
		return nil, fmt.Errorf("configure compiler: %w", err)
	}
	c := compiler.Instance()
	logger.Info("events compiler ready", "toolchain", invoker.Name(), "work_dir", cfg.WorkDir, "header_dirs", c.HeaderDirectories())
	return c, nil
}

// requestScene reloads a scene's events from disk and asks for its compilation.
func requestScene(c *compiler.Compiler, proj *project.Project, id process.SceneID) error {
	scene, err := proj.Lookup(id)
	if err != nil {
		return err
	}
	if err := scene.Reload(); err != nil {
		return err
	}
	c.EventsCompilationNeeded(proj.Game(), scene)
	return nil
}

func lookupScene(proj *project.Project) func(process.SceneID) (compiler.Scene, error) {
	return func(id process.SceneID) (compiler.Scene, error) {
		scene, err := proj.Lookup(id)
		if err != nil {
			return nil, err
		}
		return scene, nil
	}
}
