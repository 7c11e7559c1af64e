package runtime

import (
	"sync/atomic"

	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
)

// Counters holds the shared, monotonically non-decreasing resource
// counters §4.3.6/§5 describe: they live with the execution context (the
// "outer isolate" in spec terms) and are only ever mutated by the
// safe-runtime helper that owns each one, so a single atomic add per call
// is sufficient — no broader locking is required even though the v8go
// callback bridge may invoke helpers from more than one goroutine across
// an execution's lifetime (timeout watcher vs. call dispatch).
type Counters struct {
	iterations      int64
	toolCalls       int64
	consoleCalls    int64
	consoleBytes    int64
	cumulativeBytes int64
}

// Snapshot is an immutable read of every counter at one instant, used to
// build Stats and audit records.
type Snapshot struct {
	Iterations      int64
	ToolCalls       int64
	ConsoleCalls    int64
	ConsoleBytes    int64
	CumulativeBytes int64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Iterations:      atomic.LoadInt64(&c.iterations),
		ToolCalls:       atomic.LoadInt64(&c.toolCalls),
		ConsoleCalls:    atomic.LoadInt64(&c.consoleCalls),
		ConsoleBytes:    atomic.LoadInt64(&c.consoleBytes),
		CumulativeBytes: atomic.LoadInt64(&c.cumulativeBytes),
	}
}

// IncrementIteration increments the iteration counter and reports
// ITERATION_LIMIT_EXCEEDED once the new value exceeds ceiling. A loop that
// runs exactly ceiling times completes without error, per §4.3.6's "a loop
// body that would run N times where N equals the iteration ceiling
// completes without error."
func (c *Counters) IncrementIteration(ceiling int64) error {
	if v := atomic.AddInt64(&c.iterations, 1); v > ceiling {
		return sandboxerr.New(sandboxerr.CodeIterationLimitExceeded, "iteration ceiling exceeded")
	}
	return nil
}

// IncrementToolCall increments the tool-call counter and reports
// TOOL_LIMIT_EXCEEDED once the ceiling is passed.
func (c *Counters) IncrementToolCall(ceiling int64) error {
	if v := atomic.AddInt64(&c.toolCalls, 1); v > ceiling {
		return sandboxerr.New(sandboxerr.CodeToolLimitExceeded, "tool-call ceiling exceeded")
	}
	return nil
}

// IncrementConsole increments the console-call counter and adds
// payloadBytes to the console-byte counter, reporting
// CONSOLE_LIMIT_EXCEEDED if either ceiling is passed.
func (c *Counters) IncrementConsole(payloadBytes int64, maxCalls int64, maxBytes int64) error {
	calls := atomic.AddInt64(&c.consoleCalls, 1)
	bytes := atomic.AddInt64(&c.consoleBytes, payloadBytes)
	if calls > maxCalls {
		return sandboxerr.New(sandboxerr.CodeConsoleLimitExceeded, "console call ceiling exceeded")
	}
	if bytes > maxBytes {
		return sandboxerr.New(sandboxerr.CodeConsoleLimitExceeded, "console output byte ceiling exceeded")
	}
	return nil
}

// AddCumulativeBytes adds n to the cumulative allocation counter the
// bounded safe-runtime helpers (__safe_concat, __safe_template,
// __safe_sidecarGet) consult before growing a value, reporting
// MEMORY_LIMIT_EXCEEDED once ceiling is passed.
func (c *Counters) AddCumulativeBytes(n int64, ceiling int64) error {
	if v := atomic.AddInt64(&c.cumulativeBytes, n); v > ceiling {
		return sandboxerr.New(sandboxerr.CodeMemoryLimitExceeded, "cumulative allocation ceiling exceeded")
	}
	return nil
}
