// Package v8sandbox adapts rogchap.com/v8go into the one-shot execution
// engine the rest of the pipeline drives through Executor.Run: compile the
// Secure Object Proxy factory, the safe-runtime prelude, the already
// transformed guest source, and the entry script into a single fresh
// v8.Context, run it to completion or to a timeout, and translate the
// outcome into a runtime.Result.
//
// Unlike the reference executor this package's isolate-lifecycle pattern
// is grounded on, there is no per-tool isolate cache here: every Run call
// gets a brand-new Isolate and Context and disposes both before
// returning, since §5 rules out any mutable state surviving across
// sessions — there is no reuse hazard to guard against, only a single
// execution's worth of resources to clean up.
package v8sandbox

import (
	"context"
	"fmt"
	"strconv"
	"time"

	v8 "rogchap.com/v8go"

	"github.com/agentscript/sentinel-enclave/internal/domain/audit"
	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
	"github.com/agentscript/sentinel-enclave/internal/domain/runtime"
	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
	"github.com/agentscript/sentinel-enclave/internal/domain/sanitize"
)

// isolateGracePeriod bounds how long Run waits, after calling
// TerminateExecution, for the isolate's goroutine to actually return
// before giving up on disposing it cleanly.
const isolateGracePeriod = 5 * time.Second

// RunOptions carries everything Run needs beyond the transformed source
// and the execution context: the tool bridge, the operation policy the
// CEL adapter compiles, any embedder-declared custom globals, the
// sanitize ceilings, and an optional sidecar for extract_large_strings
// handles.
type RunOptions struct {
	Handler         ToolHandler
	OperationPolicy policy.OperationPolicy
	CustomGlobals   map[string]any
	SanitizeOpts    sanitize.Options
	Sidecar         sidecarReader

	// ToolCallLog, when non-nil, receives every mediated tool call's audit
	// record once Run returns, success or failure — the facade service
	// passes a pointer here so it can attach the full call log to the
	// audit.ExecutionRecord it persists, without runtime.Result itself
	// needing to grow an audit-specific field.
	ToolCallLog *[]audit.ToolCallRecord
}

// Executor compiles and runs one transformed script per Run call.
type Executor struct{}

// NewExecutor constructs an Executor. It holds no state: every
// configuration knob lives on the runtime.Context's Preset or on
// RunOptions, passed fresh to each Run call.
func NewExecutor() *Executor {
	return &Executor{}
}

// Run executes source (the already-validated, already-transformed guest
// script, ending in a top-level `async function __ag_main() { ... }`)
// inside a fresh isolate, enforcing execCtx.Preset.Timeout as an absolute
// wall-clock ceiling from the moment compilation begins.
func (e *Executor) Run(ctx context.Context, source string, execCtx *runtime.Context, opts RunOptions) runtime.Result {
	if err := execCtx.Start(); err != nil {
		return runtime.Failed(toSandboxError(err), runtime.Stats{})
	}

	r := &run{
		ctx:      ctx,
		execCtx:  execCtx,
		handler:  opts.Handler,
		opPolicy: opts.OperationPolicy,
		sanOpts:  opts.SanitizeOpts,
		sidecar:  opts.Sidecar,
	}

	type outcome struct {
		value any
		err   *sandboxerr.SandboxError
		state runtime.State
	}
	resultCh := make(chan outcome, 1)

	iso := v8.NewIsolate()

	go func() {
		value, err := e.execute(iso, source, execCtx, opts, r)
		state := runtime.StateSucceeded
		if err != nil {
			state = runtime.StateFailed
		}
		resultCh <- outcome{value: value, err: err, state: state}
	}()

	var final outcome
	timeout := execCtx.Preset.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case final = <-resultCh:
		iso.Dispose()

	case <-time.After(timeout):
		execCtx.Abort()
		iso.TerminateExecution()
		select {
		case <-resultCh:
			iso.Dispose()
		case <-time.After(isolateGracePeriod):
			// The goroutine did not observe termination within the
			// grace period; do not dispose out from under it. The
			// isolate is abandoned, not reused — no leaked-isolate
			// safety valve is needed since this process never reuses it.
		}
		final = outcome{
			err:   sandboxerr.New(sandboxerr.CodeSandboxAborted, fmt.Sprintf("execution exceeded timeout of %s", timeout)),
			state: runtime.StateTimedOut,
		}

	case <-ctx.Done():
		execCtx.Abort()
		iso.TerminateExecution()
		select {
		case <-resultCh:
			iso.Dispose()
		case <-time.After(isolateGracePeriod):
		}
		final = outcome{
			err:   sandboxerr.New(sandboxerr.CodeSandboxAborted, "execution cancelled: "+ctx.Err().Error()),
			state: runtime.StateCancelled,
		}
	}

	end, finishErr := execCtx.Finish(final.state)
	if finishErr != nil && final.err == nil {
		final.err = toSandboxError(finishErr)
	}
	stats := execCtx.Stats(end)
	execCtx.Dispose()

	if opts.ToolCallLog != nil {
		*opts.ToolCallLog = r.toolCalls
	}

	if final.err != nil {
		return runtime.Failed(final.err, stats)
	}
	return runtime.Succeeded(final.value, stats)
}

// execute builds the isolate's global template, compiles the proxy
// factory, the prelude, the transformed source, and the entry script in
// order, and reads back whichever of resolve/reject the entry script
// invoked. It runs entirely on the goroutine Run spawns so a timeout can
// abandon it by terminating the isolate out from under it.
func (e *Executor) execute(iso *v8.Isolate, source string, execCtx *runtime.Context, opts RunOptions, r *run) (any, *sandboxerr.SandboxError) {
	global := v8.NewObjectTemplate(iso)

	if err := bindHostFunctions(iso, global, r); err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "failed to bind host functions", err)
	}

	v8ctx := v8.NewContext(iso, global)
	defer v8ctx.Close()

	factory := proxyFactoryScript(execCtx.Preset.Proxy.DenyList(), execCtx.Preset.Proxy.MaxDepth)
	if _, err := v8ctx.RunScript(factory, "<proxy>"); err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "failed to install secure proxy factory", err)
	}

	if err := installCustomGlobals(v8ctx, opts.CustomGlobals); err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "failed to install custom globals", err)
	}

	if _, err := v8ctx.RunScript(preludeScript, "<prelude>"); err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "failed to install safe runtime prelude", err)
	}

	if _, err := v8ctx.RunScript(source, "<guest>"); err != nil {
		return nil, wrapGuestError(err)
	}

	if _, err := v8ctx.RunScript(entryScript, "<entry>"); err != nil {
		return nil, wrapGuestError(err)
	}

	if !r.resolved {
		return nil, sandboxerr.New(sandboxerr.CodeEnclaveError, "script completed without resolving or rejecting")
	}
	if r.failure != nil {
		return nil, r.failure
	}
	return r.value, nil
}

// installCustomGlobals assigns each embedder-declared custom global onto
// the context's global object, then immediately rewraps it through
// __ag_makeSecureProxy — the proxy factory must already be installed by
// the time this runs, so a custom global is never reachable in its raw
// form even though it was never wrapped by the deny-list logic baked into
// the standard built-ins.
func installCustomGlobals(v8ctx *v8.Context, globals map[string]any) error {
	if len(globals) == 0 {
		return nil
	}
	obj := v8ctx.Global()
	for name, value := range globals {
		jsValue, err := goToJS(v8ctx, value)
		if err != nil {
			return fmt.Errorf("custom global %q: %w", name, err)
		}
		if err := obj.Set(name, jsValue); err != nil {
			return fmt.Errorf("custom global %q: %w", name, err)
		}
		wrap := fmt.Sprintf("globalThis[%s] = globalThis.__ag_makeSecureProxy(globalThis[%s], 0);", strconv.Quote(name), strconv.Quote(name))
		if _, err := v8ctx.RunScript(wrap, "<custom-global>"); err != nil {
			return fmt.Errorf("custom global %q: wrap: %w", name, err)
		}
	}
	return nil
}

// wrapGuestError converts a v8go compile/runtime error (typically a
// *v8go.JSError) into a SandboxError. When the error carries a stack, the
// stack is always redacted and attached; Preset.SanitizeStackTraces is not
// consulted, so no preset receives the unredacted stack.
func wrapGuestError(err error) *sandboxerr.SandboxError {
	jsErr, ok := err.(*v8.JSError)
	if !ok {
		return sandboxerr.Wrap(sandboxerr.CodeExecutionError, "uncaught guest error", err)
	}
	se := sandboxerr.New(sandboxerr.CodeExecutionError, jsErr.Message)
	if jsErr.StackTrace != "" {
		se = se.WithStack(sandboxerr.RedactStack(jsErr.StackTrace))
	}
	return se
}
