package fault

import (
	"strings"
	"testing"
	"time"
)

func TestCaptureRecordsCauseAndStack(t *testing.T) {
	snap := Capture("boom")
	if snap.Cause != "boom" {
		t.Fatalf("want cause %q, got %v", "boom", snap.Cause)
	}
	if len(snap.Stack) == 0 {
		t.Fatal("want a non-empty stack dump")
	}
	if !strings.Contains(string(snap.Stack), "goroutine") {
		t.Fatal("want the stack dump to look like a goroutine dump")
	}
}

func TestGuardRecoversAndReportsBeforeParking(t *testing.T) {
	reported := make(chan Snapshot, 1)

	go func() {
		defer Guard(func(s Snapshot) { reported <- s })()
		panic("unreachable invariant violated")
	}()

	select {
	case snap := <-reported:
		if snap.Cause != "unreachable invariant violated" {
			t.Fatalf("want the panic value as cause, got %v", snap.Cause)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Guard to recover and report")
	}
}

func TestGuardDoesNothingWithoutAPanic(t *testing.T) {
	called := false
	func() {
		defer Guard(func(Snapshot) { called = true })()
	}()
	if called {
		t.Fatal("want onFault not called absent a panic")
	}
}
