// Package toolchain invokes the external C++ compiler that turns a generated
// events source file into a native artifact.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tendant/events-compiler/internal/outputlock"
)

// ErrToolNotFound is returned when the compiler binary is not on PATH.
var ErrToolNotFound = errors.New("compiler not found")

// Invoker defines the interface for compiling one events source file.
//
// Implementations must be safe to call from a background goroutine. Compile
// must leave any artifact from a previous successful run untouched when it fails.
type Invoker interface {
	// Name returns the invoker name (e.g., "clang", "gcc")
	Name() string

	// Compile builds sourceFile with the given header search directories and
	// returns the path of the produced artifact.
	Compile(ctx context.Context, sourceFile string, headerDirs []string) (string, error)

	// Probe returns information about the compiler without compiling anything
	Probe(ctx context.Context) (*ToolInfo, error)
}

// ToolInfo describes the compiler binary an invoker runs
type ToolInfo struct {
	Path    string // Resolved binary path
	Version string // First line of `--version`
	Target  string // Target triple, when reported
}

// GetInvoker returns the appropriate invoker for the given compiler binary.
// Binaries in the clang family emit LLVM bitcode; gcc family binaries emit
// object files.
func GetInvoker(binary string, lock *outputlock.Lock) (Invoker, error) {
	name := strings.ToLower(filepath.Base(binary))

	switch {
	case strings.HasPrefix(name, "clang"):
		return NewClangInvoker(binary, lock), nil
	case strings.HasPrefix(name, "g++"), strings.HasPrefix(name, "gcc"), strings.HasSuffix(name, "-g++"):
		return NewGCCInvoker(binary, lock), nil
	default:
		return nil, fmt.Errorf("unsupported compiler: %s (supported: clang*, g++, gcc)", binary)
	}
}

// SupportedCompilers returns the compiler names GetInvoker recognises
func SupportedCompilers() []string {
	return []string{"clang++", "clang", "g++", "gcc"}
}

// includeFlags turns header directories into -I flags, skipping empty entries.
func includeFlags(headerDirs []string) []string {
	flags := make([]string, 0, len(headerDirs))
	for _, dir := range headerDirs {
		if dir == "" {
			continue
		}
		flags = append(flags, "-I"+dir)
	}
	return flags
}

// artifactPath derives the output path from the source path: scene.cpp -> scene.<ext>
func artifactPath(sourceFile, ext string) string {
	return strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile)) + ext
}

// run executes the compiler writing to a temporary file, then moves it over
// output. Both steps happen under lock. A failed run removes the temporary file
// and leaves output as it was.
func run(ctx context.Context, lock *outputlock.Lock, binary string, args []string, tmp, output string) error {
	return lock.Do(func() error {
		cmd := exec.CommandContext(ctx, binary, args...)

		// Run command and capture output
		outputBytes, err := cmd.CombinedOutput()
		if err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("%s failed: %w\nOutput: %s", filepath.Base(binary), err, string(outputBytes))
		}

		if err := os.Rename(tmp, output); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to move artifact: %w", err)
		}
		return nil
	})
}

// probe runs `binary --version` and parses the first line and target triple.
func probe(ctx context.Context, binary string) (*ToolInfo, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolNotFound, binary, err)
	}

	output, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s --version failed: %w\nOutput: %s", binary, err, string(output))
	}

	info := &ToolInfo{Path: path}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		info.Version = strings.TrimSpace(lines[0])
	}
	for _, line := range lines {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == "Target" {
			info.Target = strings.TrimSpace(parts[1])
		}
	}
	return info, nil
}
