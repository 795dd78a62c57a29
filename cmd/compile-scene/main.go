// cmd/compile-scene compiles a single events file with the configured toolchain,
// without the scheduler, NATS or a project manifest. It is meant for checking a
// toolchain setup.
//
// Usage:
//
//	./compile-scene -input menu.events
//	./compile-scene -input menu.events -scene menu -cxx g++ -I /opt/gdl/include
//	./compile-scene -probe -cxx clang++-17   # Show toolchain version only
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tendant/events-compiler/internal/codegen"
	"github.com/tendant/events-compiler/internal/outputlock"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/internal/toolchain"
)

type headerDirs []string

func (h *headerDirs) String() string { return strings.Join(*h, ",") }

func (h *headerDirs) Set(v string) error {
	*h = append(*h, v)
	return nil
}

func main() {
	var includes headerDirs

	input := flag.String("input", "", "Events file to compile (required unless -probe)")
	scene := flag.String("scene", "", "Scene id (default: input file name)")
	game := flag.String("game", "default", "Game id, used for the output directory")
	workDir := flag.String("work-dir", "", "Directory for generated sources and artifacts (default: temp dir)")
	cxx := flag.String("cxx", "clang++", "Compiler binary")
	probe := flag.Bool("probe", false, "Show toolchain information only (don't compile)")
	timeout := flag.Int("timeout", 120, "Compilation timeout in seconds")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Var(&includes, "I", "Header directory (repeatable)")

	flag.Parse()

	invoker, err := toolchain.GetInvoker(*cxx, outputlock.Default)
	if err != nil {
		log.Fatalf("%v\n\nSupported compilers: %s", err, strings.Join(toolchain.SupportedCompilers(), ", "))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	// Probe mode: show toolchain and exit
	if *probe {
		info, err := invoker.Probe(ctx)
		if err != nil {
			log.Fatalf("Failed to probe %s: %v", *cxx, err)
		}
		fmt.Println("Toolchain:")
		fmt.Println(strings.Repeat("-", 40))
		fmt.Printf("Invoker: %s\n", invoker.Name())
		fmt.Printf("Binary:  %s\n", info.Path)
		fmt.Printf("Version: %s\n", info.Version)
		if info.Target != "" {
			fmt.Printf("Target:  %s\n", info.Target)
		}
		return
	}

	if *input == "" {
		fmt.Println("Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	events, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("Failed to read events file: %v", err)
	}

	if *scene == "" {
		base := filepath.Base(*input)
		*scene = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if *workDir == "" {
		dir, err := os.MkdirTemp("", "compile-scene-")
		if err != nil {
			log.Fatalf("Failed to create work dir: %v", err)
		}
		*workDir = dir
	}

	snap := process.Snapshot{
		GameID:    process.GameID(*game),
		GameName:  *game,
		SceneID:   process.SceneID(*scene),
		SceneName: *scene,
		Events:    events,
	}

	if *verbose {
		fmt.Printf("Input:    %s (%d bytes)\n", *input, len(events))
		fmt.Printf("Scene:    %s (%s)\n", *scene, codegen.Symbol(snap.SceneID))
		fmt.Printf("Invoker:  %s\n", invoker.Name())
		fmt.Printf("Work dir: %s\n", *workDir)
	}

	start := time.Now()
	source, err := codegen.NewTemplateRenderer(*workDir).Render(ctx, snap)
	if err != nil {
		log.Fatalf("Code generation failed: %v", err)
	}
	if *verbose {
		fmt.Printf("Source:   %s\n", source)
	}

	artifact, err := invoker.Compile(ctx, source, includes)
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}
	duration := time.Since(start)

	info, err := os.Stat(artifact)
	if err != nil {
		log.Fatalf("Failed to read artifact: %v", err)
	}

	fmt.Printf("\nCompilation successful\n")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Artifact: %s\n", artifact)
	fmt.Printf("Size:     %s\n", formatBytes(info.Size()))
	fmt.Printf("Time:     %v\n", duration.Round(time.Millisecond))
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
