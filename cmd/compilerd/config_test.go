package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/process"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"NATS_URL", "COMPILE_REQUEST_SUBJECT", "COMPILE_EVENT_SUBJECT", "PROJECT_FILE", "WORK_DIR", "CXX", "HEADER_DIRS", "METRICS_ADDR", "WATCH_PROJECT", "WATCH_DEBOUNCE_MS", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.NATSURL != "nats://127.0.0.1:4222" {
		t.Fatalf("unexpected NATS URL: %s", cfg.NATSURL)
	}
	if cfg.RequestSubject != "events.compile.requests" || cfg.EventSubject != "events.compile.done" {
		t.Fatalf("unexpected subjects: %s %s", cfg.RequestSubject, cfg.EventSubject)
	}
	if cfg.CXX != "clang++" {
		t.Fatalf("unexpected compiler: %s", cfg.CXX)
	}
	if cfg.WorkDir != compiler.DefaultWorkDir() {
		t.Fatalf("unexpected work dir: %s", cfg.WorkDir)
	}
	if !cfg.WatchProject || cfg.WatchDebounce != 250*time.Millisecond {
		t.Fatalf("unexpected watch settings: %v %v", cfg.WatchProject, cfg.WatchDebounce)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected log level: %v", cfg.LogLevel)
	}
	if cfg.MetricsAddr != "" {
		t.Fatalf("empty METRICS_ADDR should disable metrics, got %q", cfg.MetricsAddr)
	}
	if len(cfg.HeaderDirs) != 0 {
		t.Fatalf("expected no header dirs, got %v", cfg.HeaderDirs)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CXX", "/usr/bin/g++-13")
	t.Setenv("HEADER_DIRS", strings.Join([]string{"/opt/gdl/include", " ", "/opt/sfml/include"}, string(os.PathListSeparator)))
	t.Setenv("WATCH_PROJECT", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.CXX != "/usr/bin/g++-13" {
		t.Fatalf("unexpected compiler: %s", cfg.CXX)
	}
	if len(cfg.HeaderDirs) != 2 || cfg.HeaderDirs[1] != "/opt/sfml/include" {
		t.Fatalf("unexpected header dirs: %v", cfg.HeaderDirs)
	}
	if cfg.WatchProject {
		t.Fatal("expected WATCH_PROJECT=false to disable watching")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected log level: %v", cfg.LogLevel)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CXX", "msvc"},
		{"WATCH_PROJECT", "sometimes"},
		{"WATCH_DEBOUNCE_MS", "0"},
		{"WATCH_DEBOUNCE_MS", "fast"},
		{"LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestResultCollectorWaitsForAcceptedJobs(t *testing.T) {
	r := newResultCollector()
	r.RequestHandled("menu", compiler.OutcomeStarted)
	r.RequestHandled("level1", compiler.OutcomeQueued)
	r.RequestHandled("menu", compiler.OutcomeCoalesced)

	menu := process.NewJob(process.Snapshot{SceneID: "menu"})
	level1 := process.NewJob(process.Snapshot{SceneID: "level1"})

	go func() {
		r.JobFinished(menu, time.Millisecond)
		r.JobDropped(level1, compiler.DropDisabled, 0)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	jobs, err := r.wait(ctx)
	if err != nil {
		t.Fatalf("wait returned error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
}

func TestResultCollectorTimesOut(t *testing.T) {
	r := newResultCollector()
	r.RequestHandled("menu", compiler.OutcomeStarted)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.wait(ctx); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestCompileScenesWithFakeToolchain(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "menu.events"), []byte("scene.Pause();"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := "id: platformer\nscenes:\n  - id: menu\n    events: menu.events\n"
	if err := os.WriteFile(filepath.Join(dir, "project.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	// A stand-in clang++ that copies its input to the -o target.
	bin := filepath.Join(dir, "clang++")
	script := "#!/bin/sh\nout=\"\"\nprev=\"\"\nfor a in \"$@\"; do\n  if [ \"$prev\" = \"-o\" ]; then out=\"$a\"; fi\n  prev=\"$a\"\ndone\necho bitcode > \"$out\"\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	compiler.DestroyInstance()
	t.Cleanup(compiler.DestroyInstance)

	opts := &rootOptions{
		cfg: config{
			ProjectFile: filepath.Join(dir, "project.yaml"),
			WorkDir:     filepath.Join(dir, "work"),
			CXX:         bin,
		},
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}

	var out strings.Builder
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := compileScenes(ctx, opts, nil, true, &out); err != nil {
		t.Fatalf("compileScenes returned error: %v\n%s", err, out.String())
	}
	if !strings.HasPrefix(out.String(), "ok      menu") {
		t.Fatalf("unexpected report: %q", out.String())
	}
	artifact := filepath.Join(dir, "work", "platformer", "menu.bc")
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("expected artifact %s: %v", artifact, err)
	}
}

func TestResultLine(t *testing.T) {
	ok := process.NewJob(process.Snapshot{SceneID: "menu"})
	process.MarkRunning(ok)
	process.MarkSucceeded(ok, "/work/menu.bc")

	failed := process.NewJob(process.Snapshot{SceneID: "level1"})
	process.MarkRunning(failed)
	process.MarkFailed(failed, &compiler.StepError{Step: compiler.StepCompile, Err: errors.New("exit status 1")})

	dropped := process.NewJob(process.Snapshot{SceneID: "level2"})
	process.MarkDropped(dropped)

	tests := []struct {
		job  *process.Job
		want string
	}{
		{ok, "ok      menu\t/work/menu.bc"},
		{failed, "FAIL    level1\ttoolchain: compile: exit status 1"},
		{dropped, "FAIL    level2\tdropped"},
	}
	for _, tt := range tests {
		if got := resultLine(tt.job); got != tt.want {
			t.Fatalf("resultLine(%s) = %q, want %q", tt.job.Scene, got, tt.want)
		}
	}
}
