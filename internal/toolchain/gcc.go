package toolchain

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/tendant/events-compiler/internal/outputlock"
)

// GCCInvoker uses g++ to compile events source files to position independent
// object files, for platforms where the runtime loads shared objects instead of
// bitcode
type GCCInvoker struct {
	binary string
	lock   *outputlock.Lock
}

// NewGCCInvoker creates a new g++-based invoker. A nil lock means outputlock.Default.
func NewGCCInvoker(binary string, lock *outputlock.Lock) *GCCInvoker {
	if binary == "" {
		binary = "g++"
	}
	if lock == nil {
		lock = outputlock.Default
	}
	return &GCCInvoker{binary: binary, lock: lock}
}

// Name returns the invoker name
func (g *GCCInvoker) Name() string {
	return "gcc"
}

// Compile emits an object file for sourceFile next to it (scene.cpp -> scene.o)
func (g *GCCInvoker) Compile(ctx context.Context, sourceFile string, headerDirs []string) (string, error) {
	if _, err := exec.LookPath(g.binary); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, g.binary, err)
	}

	output := artifactPath(sourceFile, ".o")
	tmp := output + ".tmp"

	args := []string{"-c", "-fPIC", "-O1", "-w"}
	args = append(args, includeFlags(headerDirs)...)
	args = append(args, sourceFile, "-o", tmp)

	if err := run(ctx, g.lock, g.binary, args, tmp, output); err != nil {
		return "", err
	}
	return output, nil
}

// Probe returns the g++ version
func (g *GCCInvoker) Probe(ctx context.Context) (*ToolInfo, error) {
	return probe(ctx, g.binary)
}
