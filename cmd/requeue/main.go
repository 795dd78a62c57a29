// cmd/requeue publishes compile commands for the scenes of a project, so a
// running compilerd rebuilds them. It defaults to a dry run.
package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/events-compiler/internal/bus"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/internal/project"
	"github.com/tendant/events-compiler/pkg/schema"
)

type config struct {
	NATSURL        string
	RequestSubject string
	ProjectFile    string
	Scenes         string
	Limit          int
	DryRun         bool
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	logger.Info("requeue starting",
		"nats_url", cfg.NATSURL,
		"request_subject", cfg.RequestSubject,
		"project", cfg.ProjectFile,
		"scenes", cfg.Scenes,
		"limit", cfg.Limit,
		"dry_run", cfg.DryRun,
	)

	proj, err := project.Load(cfg.ProjectFile)
	if err != nil {
		fatal(logger, "load project", err, "project", cfg.ProjectFile)
	}

	scenes, err := selectScenes(proj, cfg.Scenes, cfg.Limit)
	if err != nil {
		fatal(logger, "select scenes", err)
	}

	// Connect to NATS (skip if dry-run)
	var pub bus.JSONPublisher
	if !cfg.DryRun {
		nc, err := bus.Connect(cfg.NATSURL, logger)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer nc.Close()
		logger.Info("connected to NATS", "nats_url", cfg.NATSURL)
		pub = nc
	}

	published, failed := publishCommands(pub, cfg.RequestSubject, string(proj.Game().ID()), scenes, logger)
	logger.Info("requeue complete",
		"scenes", len(scenes),
		"published", published,
		"failed", len(failed),
		"dry_run", cfg.DryRun,
	)
	if len(failed) > 0 {
		logger.Error("some commands failed", "failed_ids", failed)
		os.Exit(1)
	}
}

func loadConfig() config {
	cfg := config{
		NATSURL:        getenv("NATS_URL", "nats://127.0.0.1:4222"),
		RequestSubject: getenv("COMPILE_REQUEST_SUBJECT", "events.compile.requests"),
		ProjectFile:    getenv("PROJECT_FILE", "./project.yaml"),
	}

	flag.StringVar(&cfg.ProjectFile, "project", cfg.ProjectFile, "Project manifest")
	flag.StringVar(&cfg.Scenes, "scenes", "", "Comma separated scene ids (empty = all scenes)")
	flag.IntVar(&cfg.Limit, "limit", 0, "Maximum number of scenes to requeue (0 = unlimited)")
	flag.BoolVar(&cfg.DryRun, "dry-run", true, "Show what would be requeued without publishing")

	var execute bool
	flag.BoolVar(&execute, "execute", false, "Actually publish commands (disables dry-run)")
	flag.Parse()

	if execute {
		cfg.DryRun = false
	}
	return cfg
}

// selectScenes returns the requested scenes in manifest order.
func selectScenes(proj *project.Project, filter string, limit int) ([]*project.Scene, error) {
	var scenes []*project.Scene
	if filter == "" {
		scenes = proj.Scenes()
	} else {
		for _, id := range strings.Split(filter, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			scene, err := proj.Lookup(process.SceneID(id))
			if err != nil {
				return nil, err
			}
			scenes = append(scenes, scene)
		}
	}
	if limit > 0 && len(scenes) > limit {
		scenes = scenes[:limit]
	}
	return scenes, nil
}

// publishCommands sends one compile command per scene. A nil pub only logs
// what would be sent.
func publishCommands(pub bus.JSONPublisher, subject, gameID string, scenes []*project.Scene, logger *slog.Logger) (int, []string) {
	published := 0
	var failed []string
	for _, scene := range scenes {
		cmd := schema.CompileCommand{
			Action:     schema.ActionCompile,
			SceneID:    string(scene.ID()),
			GameID:     gameID,
			HappenedAt: time.Now().Unix(),
		}
		if pub == nil {
			logger.Info("would requeue scene", "scene_id", cmd.SceneID, "events", scene.Path())
			continue
		}
		if err := pub.PublishJSON(subject, cmd); err != nil {
			logger.Error("publish compile command failed", "scene_id", cmd.SceneID, "err", err)
			failed = append(failed, cmd.SceneID)
			continue
		}
		published++
		logger.Info("requeued scene", "scene_id", cmd.SceneID)
	}
	return published, failed
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
