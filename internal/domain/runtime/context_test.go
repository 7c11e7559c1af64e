package runtime

import (
	"testing"

	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
)

func TestContextLifecycleHappyPath(t *testing.T) {
	ctx := NewContext(policy.StandardPreset)
	if ctx.State() != StateCreated {
		t.Fatalf("expected Created, got %s", ctx.State())
	}
	if err := ctx.Start(); err != nil {
		t.Fatalf("unexpected error starting: %v", err)
	}
	if ctx.State() != StateRunning {
		t.Fatalf("expected Running, got %s", ctx.State())
	}
	if _, err := ctx.Finish(StateSucceeded); err != nil {
		t.Fatalf("unexpected error finishing: %v", err)
	}
	ctx.Dispose()
	if ctx.State() != StateDisposed {
		t.Fatalf("expected Disposed, got %s", ctx.State())
	}
}

func TestContextRejectsIllegalTransition(t *testing.T) {
	ctx := NewContext(policy.StandardPreset)
	if _, err := ctx.Finish(StateSucceeded); err == nil {
		t.Fatalf("expected an error finishing before Start")
	}
}

func TestContextRejectsNonTerminalFinish(t *testing.T) {
	ctx := NewContext(policy.StandardPreset)
	_ = ctx.Start()
	if _, err := ctx.Finish(StateRunning); err == nil {
		t.Fatalf("expected an error finishing into a non-terminal state")
	}
}

func TestContextAbort(t *testing.T) {
	ctx := NewContext(policy.StandardPreset)
	if ctx.Aborted() {
		t.Fatalf("expected not aborted initially")
	}
	ctx.Abort()
	if !ctx.Aborted() {
		t.Fatalf("expected aborted after Abort()")
	}
	if err := ctx.CheckAborted(); err == nil {
		t.Fatalf("expected CheckAborted to return an error")
	}
}

func TestContextIDsAreUnique(t *testing.T) {
	a := NewContext(policy.StandardPreset)
	b := NewContext(policy.StandardPreset)
	if a.ID == b.ID {
		t.Fatalf("expected distinct execution IDs, got %q twice", a.ID)
	}
}

func TestCountersIterationCeiling(t *testing.T) {
	var c Counters
	for i := 0; i < 3; i++ {
		if err := c.IncrementIteration(3); err != nil {
			t.Fatalf("iteration %d: unexpected error: %v", i, err)
		}
	}
	if err := c.IncrementIteration(3); err == nil {
		t.Fatalf("expected ITERATION_LIMIT_EXCEEDED on the 4th increment")
	}
}

func TestCountersConsoleCeilings(t *testing.T) {
	var c Counters
	if err := c.IncrementConsole(10, 5, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.IncrementConsole(1000, 5, 100); err == nil {
		t.Fatalf("expected CONSOLE_LIMIT_EXCEEDED when bytes exceed ceiling")
	}
}

func TestOperationHistoryIsAppendOnlyCopy(t *testing.T) {
	ctx := NewContext(policy.StandardPreset)
	ctx.RecordOperation("search")
	ctx.RecordOperation("fetch")
	hist := ctx.OperationHistory()
	hist[0] = "mutated"
	if got := ctx.OperationHistory(); got[0] != "search" {
		t.Fatalf("expected history to be insulated from caller mutation, got %v", got)
	}
}
