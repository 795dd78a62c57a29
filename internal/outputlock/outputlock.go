// Package outputlock holds the process-wide exclusion lock taken around any step
// that writes compiled output.
//
// The lock is shared with editor UI code: native open/save file dialogs are not
// safe while bitcode is being written, so the dialog code takes the same lock
// before showing one. The compiler scheduler never takes it; only toolchain
// invokers do. It is independent of the scheduler's own state lock.
package outputlock

import "sync"

// Lock is an exclusive lock with a helper for scoped use.
type Lock struct {
	mu sync.Mutex
}

// Default is the process-wide instance shared by toolchain invokers and UI dialogs.
var Default = &Lock{}

func (l *Lock) Lock()   { l.mu.Lock() }
func (l *Lock) Unlock() { l.mu.Unlock() }

// TryLock reports whether the lock was acquired without waiting.
func (l *Lock) TryLock() bool { return l.mu.TryLock() }

// Do runs fn while holding the lock.
func (l *Lock) Do(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
