package outputlock

import (
	"errors"
	"testing"
)

func TestDoHoldsLockForDuration(t *testing.T) {
	l := &Lock{}
	err := l.Do(func() error {
		if l.TryLock() {
			t.Fatal("lock acquired while Do was running")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !l.TryLock() {
		t.Fatal("lock still held after Do returned")
	}
	l.Unlock()
}

func TestDoReturnsFnError(t *testing.T) {
	want := errors.New("write failed")
	if err := (&Lock{}).Do(func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
}
