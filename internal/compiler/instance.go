package compiler

import (
	"errors"
	"sync"
)

// ErrAlreadyInitialized is returned by Configure once the instance exists.
var ErrAlreadyInitialized = errors.New("events compiler already initialized")

var (
	instanceMu  sync.Mutex
	instance    *Compiler
	instanceCfg Config
)

// Configure sets the configuration Instance uses when it creates the
// process-wide compiler. It fails once that compiler exists.
func Configure(cfg Config) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return ErrAlreadyInitialized
	}
	instanceCfg = cfg
	return nil
}

// Instance returns the process-wide compiler, creating it on first use.
func Instance() *Compiler {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		instance = New(instanceCfg)
	}
	return instance
}

// DestroyInstance closes the process-wide compiler and waits for its running
// job. Instance blocks until the teardown completes, so two compilers never run
// jobs at the same time. Calling it without an instance is a no-op.
func DestroyInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		return
	}
	instance.Close()
	instance = nil
}
