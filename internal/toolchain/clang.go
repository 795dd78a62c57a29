package toolchain

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/tendant/events-compiler/internal/outputlock"
)

// ClangInvoker uses clang to compile events source files to LLVM bitcode
type ClangInvoker struct {
	binary   string
	std      string // C++ standard passed as -std=
	optLevel string // Optimisation flag (default -O1)
	lock     *outputlock.Lock
}

// NewClangInvoker creates a new clang-based invoker. A nil lock means
// outputlock.Default.
func NewClangInvoker(binary string, lock *outputlock.Lock) *ClangInvoker {
	if binary == "" {
		binary = "clang++"
	}
	if lock == nil {
		lock = outputlock.Default
	}
	return &ClangInvoker{
		binary:   binary,
		std:      "c++11",
		optLevel: "-O1",
		lock:     lock,
	}
}

// Name returns the invoker name
func (c *ClangInvoker) Name() string {
	return "clang"
}

// Compile emits bitcode for sourceFile next to it (scene.cpp -> scene.bc)
func (c *ClangInvoker) Compile(ctx context.Context, sourceFile string, headerDirs []string) (string, error) {
	// Check if the compiler is available
	if _, err := exec.LookPath(c.binary); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrToolNotFound, c.binary, err)
	}

	output := artifactPath(sourceFile, ".bc")
	tmp := output + ".tmp"

	// -emit-llvm -c: bitcode only, no linking
	// -fno-exceptions: events code never throws across the runtime boundary
	args := []string{
		"-emit-llvm", "-c",
		"-std=" + c.std,
		c.optLevel,
		"-fno-exceptions",
		"-w",
	}
	args = append(args, includeFlags(headerDirs)...)
	args = append(args, sourceFile, "-o", tmp)

	if err := run(ctx, c.lock, c.binary, args, tmp, output); err != nil {
		return "", err
	}
	return output, nil
}

// Probe returns the clang version and target triple
func (c *ClangInvoker) Probe(ctx context.Context) (*ToolInfo, error) {
	return probe(ctx, c.binary)
}

// SetOptimization sets the optimisation flag, e.g. "-O0" or "-O2"
func (c *ClangInvoker) SetOptimization(flag string) {
	if flag != "" {
		c.optLevel = flag
	}
}

// SetStandard sets the C++ standard, e.g. "c++17"
func (c *ClangInvoker) SetStandard(std string) {
	if std != "" {
		c.std = std
	}
}
