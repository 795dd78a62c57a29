package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/pkg/schema"
)

var ErrUnknownAction = errors.New("unknown command action")

// Target is the scheduler surface commands drive. *compiler.Compiler implements it.
type Target interface {
	EventsCompilationNeeded(game compiler.Game, scene compiler.Scene)
	EnableCompilation(scene process.SceneID)
	DisableCompilation(scene process.SceneID)
	NotifyASceneIsDestroyed(scene process.SceneID)
}

// reloader is implemented by scenes whose events live outside the process.
type reloader interface {
	Reload() error
}

// Commands applies schema.CompileCommand messages to a Target.
type Commands struct {
	Target Target
	Game   compiler.Game
	// Lookup resolves the scene named by a compile command.
	Lookup func(process.SceneID) (compiler.Scene, error)
	// Forget is called after a scene was reported destroyed. Optional.
	Forget func(process.SceneID)
	Logger *slog.Logger
}

// Handle decodes and applies one message. Its signature matches
// Client.SubscribeJSON handlers; failures are logged.
func (c *Commands) Handle(_ context.Context, data []byte) {
	logger := c.logger()

	var cmd schema.CompileCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		logger.Error("invalid compile command payload", "err", err)
		return
	}
	if err := c.Apply(cmd); err != nil {
		logger.Warn("compile command rejected", "err", err, "action", cmd.Action, "scene_id", cmd.SceneID)
		return
	}
	logger.Debug("compile command applied", "action", cmd.Action, "scene_id", cmd.SceneID)
}

func (c *Commands) Apply(cmd schema.CompileCommand) error {
	if cmd.SceneID == "" {
		return fmt.Errorf("command %q: scene_id is required", cmd.Action)
	}
	if cmd.GameID != "" && c.Game != nil && process.GameID(cmd.GameID) != c.Game.ID() {
		return fmt.Errorf("command %q: game %s is not loaded", cmd.Action, cmd.GameID)
	}
	id := process.SceneID(cmd.SceneID)

	switch cmd.Action {
	case schema.ActionCompile:
		scene, err := c.Lookup(id)
		if err != nil {
			return err
		}
		if r, ok := scene.(reloader); ok {
			if err := r.Reload(); err != nil {
				return err
			}
		}
		c.Target.EventsCompilationNeeded(c.Game, scene)
	case schema.ActionEnable:
		c.Target.EnableCompilation(id)
	case schema.ActionDisable:
		c.Target.DisableCompilation(id)
	case schema.ActionDestroyed:
		c.Target.NotifyASceneIsDestroyed(id)
		if c.Forget != nil {
			c.Forget(id)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return nil
}

func (c *Commands) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
