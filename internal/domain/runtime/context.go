package runtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
)

// Context is the per-run state §4.3/§5 call the "execution context":
// effective config, abort flag, shared counters, operation-name history,
// and the start instant. One Context serves exactly one execution; it is
// discarded at Disposed, never reused across runs (§5's "no mutable
// global state spans sessions").
type Context struct {
	ID     string
	Preset policy.Preset

	Counters Counters

	start time.Time

	aborted atomic.Bool

	stateMu sync.Mutex
	state   State

	opNamesMu sync.Mutex
	opNames   []string
}

// NewContext creates a fresh execution context in state Created, carrying
// a uuid-derived ID for correlating audit records and tool-call events
// with this run (§5 "each tool-call event carries a session-unique call
// identifier").
func NewContext(preset policy.Preset) *Context {
	return &Context{
		ID:     uuid.New().String(),
		Preset: preset,
		state:  StateCreated,
	}
}

// Start transitions Created -> Running and records the start instant.
// Returns an error only if called twice or out of order — a host bug, not
// a condition a guest script can trigger.
func (c *Context) Start() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !CanTransition(c.state, StateRunning) {
		return &InvalidTransitionError{From: c.state, To: StateRunning}
	}
	c.state = StateRunning
	c.start = time.Now()
	return nil
}

// Finish transitions Running -> outcome, recording the end instant.
// outcome must be one of the five terminal outcomes from §4.3.7.
func (c *Context) Finish(outcome State) (time.Time, error) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !IsTerminalOutcome(outcome) || !CanTransition(c.state, outcome) {
		return time.Time{}, &InvalidTransitionError{From: c.state, To: outcome}
	}
	c.state = outcome
	return time.Now(), nil
}

// Dispose transitions the current terminal outcome to Disposed
// unconditionally, per §4.3.7's "the others move to Disposed
// unconditionally after result emission."
func (c *Context) Dispose() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = StateDisposed
}

// State returns the current lifecycle state.
func (c *Context) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Abort sets the abort flag. Safe to call from any goroutine: the wall-
// clock watchdog, an explicit embedder cancel, or a resource-ceiling
// breach detected inside a safe-runtime helper.
func (c *Context) Abort() {
	c.aborted.Store(true)
}

// Aborted reports whether Abort has been called. Every safe-runtime
// helper consults this at its first suspension or iteration step and
// raises SANDBOX_ABORTED when true, per §4.3's cancellation semantics.
func (c *Context) Aborted() bool {
	return c.aborted.Load()
}

// CheckAborted returns a SANDBOX_ABORTED error if the context has been
// aborted, nil otherwise — the one-line check every safe-runtime helper
// opens with.
func (c *Context) CheckAborted() error {
	if c.Aborted() {
		return sandboxerr.New(sandboxerr.CodeSandboxAborted, "execution was aborted")
	}
	return nil
}

// RecordOperation appends name to the append-only operation-name history
// kept for post-hoc audit inspection. The allow/block pattern policy
// (§12.1) matches only the current call's name and does not read it.
func (c *Context) RecordOperation(name string) {
	c.opNamesMu.Lock()
	defer c.opNamesMu.Unlock()
	c.opNames = append(c.opNames, name)
}

// OperationHistory returns a copy of the operation-name history recorded
// so far.
func (c *Context) OperationHistory() []string {
	c.opNamesMu.Lock()
	defer c.opNamesMu.Unlock()
	out := make([]string, len(c.opNames))
	copy(out, c.opNames)
	return out
}

// Stats reports the execution's current duration and counters, suitable
// for embedding in a Result whether or not the run has finished.
func (c *Context) Stats(end time.Time) Stats {
	snap := c.Counters.Snapshot()
	if end.IsZero() {
		end = time.Now()
	}
	return Stats{
		DurationMS:     end.Sub(c.start).Milliseconds(),
		ToolCallCount:  snap.ToolCalls,
		IterationCount: snap.Iterations,
		Start:          c.start,
		End:            end,
	}
}
