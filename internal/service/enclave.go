// Package service provides the "run one script" facade spec.md calls for:
// every other part of the repository reaches validation, transform,
// execution, sanitization, and audit logging through this one entry
// point rather than wiring v8sandbox.Executor directly.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentscript/sentinel-enclave/internal/adapter/outbound/v8sandbox"
	"github.com/agentscript/sentinel-enclave/internal/ctxkey"
	"github.com/agentscript/sentinel-enclave/internal/domain/audit"
	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
	"github.com/agentscript/sentinel-enclave/internal/domain/runtime"
	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
	"github.com/agentscript/sentinel-enclave/internal/domain/sanitize"
	"github.com/agentscript/sentinel-enclave/internal/domain/transform"
	"github.com/agentscript/sentinel-enclave/internal/domain/validation"
)

// defaultSidecarCapacity bounds how many extract_large_strings handles one
// execution's Sidecar holds before Put starts refusing new entries.
const defaultSidecarCapacity = 256

// Enclave is the facade: one instance is configured once at startup
// (security level, tool handler, operation policy, audit store) and then
// drives every Run call against whatever source an embedder supplies.
type Enclave struct {
	basePreset    policy.Preset
	customGlobals []string

	validator *validation.Validator
	executor  *v8sandbox.Executor

	handler    v8sandbox.ToolHandler
	opPolicy   policy.OperationPolicy
	auditStore audit.Store

	sidecarCapacity int
}

// Option configures an Enclave at construction time.
type Option func(*Enclave)

// WithToolHandler sets the handler __safe_callTool forwards mediated
// calls to. Without one, every tool call fails with CodeSecurityViolation.
func WithToolHandler(h v8sandbox.ToolHandler) Option {
	return func(e *Enclave) { e.handler = h }
}

// WithOperationPolicy sets the allow/block patterns evaluated against a
// tool call's operation name before it reaches the handler (§12.1).
func WithOperationPolicy(p policy.OperationPolicy) Option {
	return func(e *Enclave) { e.opPolicy = p }
}

// WithAuditStore sets where ExecutionRecords are persisted. Defaults to
// audit.NopStore{} — the audit trail is optional and off by default per
// §12.3.
func WithAuditStore(s audit.Store) Option {
	return func(e *Enclave) { e.auditStore = s }
}

// WithCustomGlobalNames names identifiers the validator and transformer
// should treat as host-supplied globals, beyond the preset's base
// allow-list, even on runs that don't themselves inject a value under
// that name.
func WithCustomGlobalNames(names []string) Option {
	return func(e *Enclave) { e.customGlobals = names }
}

// WithSidecarCapacity overrides how many extract_large_strings handles a
// single execution's Sidecar can hold.
func WithSidecarCapacity(n int) Option {
	return func(e *Enclave) {
		if n > 0 {
			e.sidecarCapacity = n
		}
	}
}

// WithBaseOverride merges o onto the Enclave's base preset once, at
// construction time, before any per-request RunRequest.Override is
// merged in Run. This is how a deployment-wide configuration override
// (e.g. config.SandboxConfig's fields) takes effect for every run that
// doesn't supply its own override, without requiring every caller to
// repeat it on each RunRequest.
func WithBaseOverride(o policy.Override) Option {
	return func(e *Enclave) { e.basePreset = e.basePreset.Merge(o) }
}

// New builds an Enclave at the given base security level, with
// DefaultRules() as its validator's rule set.
func New(level policy.SecurityLevel, opts ...Option) *Enclave {
	e := &Enclave{
		basePreset:      policy.ForLevel(level),
		validator:       validation.New(validation.DefaultRules()),
		executor:        v8sandbox.NewExecutor(),
		auditStore:      audit.NopStore{},
		sidecarCapacity: defaultSidecarCapacity,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunRequest is one "run this script" call.
type RunRequest struct {
	// Source is the candidate agent-authored JavaScript.
	Source string

	// Override carries per-run field overrides merged onto the Enclave's
	// base preset (§6.2).
	Override policy.Override

	// CustomGlobals are embedder-supplied values injected as globals,
	// each wrapped in the Secure Object Proxy before the guest can see it.
	CustomGlobals map[string]any
}

// Run validates, transforms, and executes req.Source, persists an audit
// record of the outcome, and returns the execution result. The returned
// runtime.Result is always well-formed: Success carries Value, failure
// always carries a *sandboxerr.SandboxError with a code from the fixed
// taxonomy, matching every other pipeline stage's contract.
func (e *Enclave) Run(ctx context.Context, req RunRequest) runtime.Result {
	preset := e.basePreset.Merge(req.Override)
	globalNames := e.allowedGlobalNames(req.CustomGlobals)

	vResult := e.validator.Validate(req.Source, validation.Options{
		Preset:        preset,
		CustomGlobals: globalNames,
	})
	if vResult.ParseError != "" || !vResult.Valid {
		result := runtime.Failed(validationError(vResult), runtime.Stats{})
		e.recordAudit(ctx, "", preset, result, nil)
		return result
	}

	sidecar := transform.NewSidecar(e.sidecarCapacity)
	transformed, err := transform.Transform(req.Source, transformContext(sidecar))
	if err != nil {
		result := runtime.Failed(
			sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "failed to transform validated source", err),
			runtime.Stats{},
		)
		e.recordAudit(ctx, "", preset, result, nil)
		return result
	}

	execCtx := runtime.NewContext(preset)

	var toolCalls []audit.ToolCallRecord
	result := e.executor.Run(ctx, transformed, execCtx, v8sandbox.RunOptions{
		Handler:         e.handler,
		OperationPolicy: e.opPolicy,
		CustomGlobals:   req.CustomGlobals,
		SanitizeOpts: sanitize.Options{
			MaxDepth:      preset.MaxSanitizeDepth,
			MaxProperties: preset.MaxSanitizeProperties,
		},
		Sidecar:     sidecar,
		ToolCallLog: &toolCalls,
	})

	e.recordAudit(ctx, execCtx.ID, preset, result, toolCalls)
	return result
}

// allowedGlobalNames merges the Enclave-wide custom global names with the
// names of this request's injected values, matching §4.1's "the Validator
// and Transformer both add each custom_globals name... to a working copy."
func (e *Enclave) allowedGlobalNames(values map[string]any) []string {
	names := make([]string, 0, len(e.customGlobals)+len(values))
	names = append(names, e.customGlobals...)
	for name := range values {
		names = append(names, name)
	}
	return names
}

func validationError(result validation.Result) *sandboxerr.SandboxError {
	if result.ParseError != "" {
		return sandboxerr.New(sandboxerr.CodeValidationError, "parse error: "+result.ParseError)
	}
	codes := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Severity == validation.SeverityError {
			codes = append(codes, fmt.Sprintf("%s: %s", issue.Code, issue.Message))
		}
	}
	return sandboxerr.New(sandboxerr.CodeValidationError, strings.Join(codes, "; "))
}

func transformContext(sidecar *transform.Sidecar) transform.Context {
	ctx := transform.DefaultContext()
	ctx.ExtractLargeStrings = true
	ctx.Sidecar = sidecar
	return ctx
}

func (e *Enclave) recordAudit(ctx context.Context, executionID string, preset policy.Preset, result runtime.Result, toolCalls []audit.ToolCallRecord) {
	record := audit.ExecutionRecord{
		ExecutionID:    executionID,
		PresetName:     string(preset.Level),
		Timestamp:      time.Now(),
		Success:        result.Success,
		DurationMS:     result.Stats.DurationMS,
		ToolCallCount:  result.Stats.ToolCallCount,
		IterationCount: result.Stats.IterationCount,
		ToolCalls:      toolCalls,
	}
	if !result.Success {
		record.ErrorCode, record.ErrorMessage = audit.FromSandboxError(result.Err)
	}
	// Append is documented as non-blocking from the caller's perspective;
	// a failure to persist the audit record must never fail the run it
	// describes.
	if err := e.auditStore.Append(ctx, record); err != nil {
		loggerFromContext(ctx).Warn("failed to persist audit record",
			"execution_id", executionID, "error", err)
	}
}

// loggerFromContext returns the *slog.Logger stashed under ctxkey.LoggerKey
// by the caller (the CLI layer enriches it with request-scoped fields
// before invoking Run), or slog.Default() when none was provided.
func loggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
