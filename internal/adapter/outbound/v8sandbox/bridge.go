package v8sandbox

import (
	"context"
	"encoding/json"
	"fmt"

	v8 "rogchap.com/v8go"

	"github.com/agentscript/sentinel-enclave/internal/domain/audit"
	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
	"github.com/agentscript/sentinel-enclave/internal/domain/runtime"
	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
	"github.com/agentscript/sentinel-enclave/internal/domain/sanitize"
	"github.com/agentscript/sentinel-enclave/internal/domain/toolrisk"
)

// ToolHandler is the capability the embedder supplies to actually reach a
// tool server; internal/adapter/outbound/toolbridge is the shipped default
// implementation. Declared here, next to its only caller, per the
// hexagonal split: the adapter implements it, nothing in internal/domain
// needs to know it exists.
type ToolHandler interface {
	CallTool(ctx context.Context, name string, args map[string]any) (any, error)
}

// run holds the per-execution state the FunctionTemplate callbacks close
// over. One run serves exactly one Execute call.
type run struct {
	ctx       context.Context
	execCtx   *runtime.Context
	handler   ToolHandler
	opPolicy  policy.OperationPolicy
	sanOpts   sanitize.Options
	sidecar   sidecarReader
	toolCalls []audit.ToolCallRecord

	resolved bool
	value    any
	failure  *sandboxerr.SandboxError
}

// sidecarReader is the read side of transform.Sidecar, narrowed to what
// the executor needs so this package only depends on the one method it
// actually calls.
type sidecarReader interface {
	Resolve(handle string) (string, bool)
}

func (r *run) checkIteration() error {
	if err := r.execCtx.CheckAborted(); err != nil {
		return err
	}
	return r.execCtx.Counters.IncrementIteration(r.execCtx.Preset.MaxIterations)
}

func (r *run) checkConcurrency(width int) error {
	if width > r.execCtx.Preset.MaxConcurrentChildTasks {
		return sandboxerr.New(sandboxerr.CodeSecurityViolation, fmt.Sprintf("parallel width %d exceeds limit %d", width, r.execCtx.Preset.MaxConcurrentChildTasks))
	}
	return nil
}

func (r *run) console(level string, args []any) error {
	if err := r.execCtx.CheckAborted(); err != nil {
		return err
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		encoded = []byte(`"[unserializable console args]"`)
	}
	return r.execCtx.Counters.IncrementConsole(int64(len(encoded)), r.execCtx.Preset.MaxConsoleCalls, r.execCtx.Preset.MaxConsoleOutputBytes)
}

func (r *run) concat(left, right string) (string, error) {
	total := int64(len(left) + len(right))
	if err := r.execCtx.Counters.AddCumulativeBytes(total, r.execCtx.Preset.MemoryCeilingBytes); err != nil {
		return "", err
	}
	return left + right, nil
}

func (r *run) callTool(name string, args map[string]any) (any, error) {
	if err := r.execCtx.CheckAborted(); err != nil {
		return nil, err
	}
	if err := r.execCtx.Counters.IncrementToolCall(r.execCtx.Preset.MaxToolCalls); err != nil {
		return nil, err
	}

	r.execCtx.RecordOperation(name)

	allowed, reason, err := r.opPolicy.Evaluate(name)
	if err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "operation policy evaluation failed", err)
	}
	if !allowed {
		return nil, sandboxerr.New(sandboxerr.CodeSecurityViolation, reason)
	}

	sanitizedArgs, err := sanitize.Sanitize(args, sanitize.Options{
		MaxDepth:      r.sanOpts.MaxDepth,
		MaxProperties: r.sanOpts.MaxProperties,
		ForToolArgs:   true,
	})
	if err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.CodeSecurityViolation, "tool arguments failed sanitization", err)
	}
	argMap, _ := sanitizedArgs.(map[string]any)

	record := audit.ToolCallRecord{
		CallID:    fmt.Sprintf("%s-%d", r.execCtx.ID, len(r.toolCalls)+1),
		Name:      name,
		Risk:      toolrisk.Classify(name),
		Arguments: audit.RedactSensitiveArgs(argMap),
	}

	if r.handler == nil {
		record.Allowed = false
		r.toolCalls = append(r.toolCalls, record)
		return nil, sandboxerr.New(sandboxerr.CodeSecurityViolation, "no tool handler configured")
	}

	result, err := r.handler.CallTool(r.ctx, name, argMap)
	if err != nil {
		record.Allowed = false
		r.toolCalls = append(r.toolCalls, record)
		return nil, sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "tool call failed", err)
	}
	record.Allowed = true
	r.toolCalls = append(r.toolCalls, record)

	sanitizedResult, err := sanitize.Sanitize(result, sanitize.Options{
		MaxDepth:      r.sanOpts.MaxDepth,
		MaxProperties: r.sanOpts.MaxProperties,
		ForToolArgs:   false,
	})
	if err != nil {
		return nil, sandboxerr.Wrap(sandboxerr.CodeSecurityViolation, "tool result failed sanitization", err)
	}
	return sanitizedResult, nil
}

func (r *run) sidecarGet(handle string) (string, error) {
	if r.sidecar == nil {
		return "", sandboxerr.New(sandboxerr.CodeEnclaveError, "no sidecar configured")
	}
	content, ok := r.sidecar.Resolve(handle)
	if !ok {
		return "", sandboxerr.New(sandboxerr.CodeEnclaveError, "unknown sidecar handle: "+handle)
	}
	if err := r.execCtx.Counters.AddCumulativeBytes(int64(len(content)), r.execCtx.Preset.MemoryCeilingBytes); err != nil {
		return "", err
	}
	return content, nil
}

// bindHostFunctions installs every __host_* callback the prelude calls
// into global. Each callback converts its v8go arguments to Go values,
// delegates to the matching *run method, and either returns a JS value or
// throws a safe error via the isolate.
func bindHostFunctions(iso *v8.Isolate, global *v8.ObjectTemplate, r *run) error {
	set := func(name string, fn v8.FunctionCallback) error {
		return global.Set(name, v8.NewFunctionTemplate(iso, fn))
	}

	if err := set("__host_checkIteration", func(info *v8.FunctionCallbackInfo) *v8.Value {
		if err := r.checkIteration(); err != nil {
			return throwSandboxError(info, err)
		}
		return undefinedValue(iso)
	}); err != nil {
		return err
	}

	if err := set("__host_checkConcurrency", func(info *v8.FunctionCallbackInfo) *v8.Value {
		width := 0
		if len(info.Args()) > 0 {
			width = int(info.Args()[0].Integer())
		}
		if err := r.checkConcurrency(width); err != nil {
			return throwSandboxError(info, err)
		}
		return undefinedValue(iso)
	}); err != nil {
		return err
	}

	if err := set("__host_console", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		level := "log"
		var payload []any
		if len(args) > 0 {
			level = args[0].String()
		}
		if len(args) > 1 {
			converted, err := jsToGo(args[1])
			if err == nil {
				if items, ok := converted.([]any); ok {
					payload = items
				}
			}
		}
		if err := r.console(level, payload); err != nil {
			return throwSandboxError(info, err)
		}
		return undefinedValue(iso)
	}); err != nil {
		return err
	}

	if err := set("__host_concat", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		var left, right string
		if len(args) > 0 {
			left = args[0].String()
		}
		if len(args) > 1 {
			right = args[1].String()
		}
		out, err := r.concat(left, right)
		if err != nil {
			return throwSandboxError(info, err)
		}
		v, _ := v8.NewValue(iso, out)
		return v
	}); err != nil {
		return err
	}

	if err := set("__host_callTool", func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		var name string
		if len(args) > 0 {
			name = args[0].String()
		}
		var argMap map[string]any
		if len(args) > 1 {
			converted, err := jsToGo(args[1])
			if err != nil {
				return throwSandboxError(info, sandboxerr.Wrap(sandboxerr.CodeSecurityViolation, "could not read tool arguments", err))
			}
			if m, ok := converted.(map[string]any); ok {
				argMap = m
			} else {
				argMap = map[string]any{}
			}
		}

		result, err := r.callTool(name, argMap)
		if err != nil {
			return throwSandboxError(info, err)
		}

		v, err := goToJS(info.Context(), result)
		if err != nil {
			return throwSandboxError(info, sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "could not marshal tool result", err))
		}
		return v
	}); err != nil {
		return err
	}

	if err := set("__host_sidecarGet", func(info *v8.FunctionCallbackInfo) *v8.Value {
		var handle string
		if len(info.Args()) > 0 {
			handle = info.Args()[0].String()
		}
		content, err := r.sidecarGet(handle)
		if err != nil {
			return throwSandboxError(info, err)
		}
		v, _ := v8.NewValue(iso, content)
		return v
	}); err != nil {
		return err
	}

	if err := set("__host_resolve", func(info *v8.FunctionCallbackInfo) *v8.Value {
		r.resolved = true
		if len(info.Args()) > 0 {
			converted, err := jsToGo(info.Args()[0])
			if err == nil {
				r.value = converted
			}
		}
		return undefinedValue(iso)
	}); err != nil {
		return err
	}

	if err := set("__host_reject", func(info *v8.FunctionCallbackInfo) *v8.Value {
		r.resolved = true
		r.failure = jsErrorToSandboxError(info.Args())
		return undefinedValue(iso)
	}); err != nil {
		return err
	}

	return nil
}

func undefinedValue(iso *v8.Isolate) *v8.Value {
	v, _ := v8.NewValue(iso, v8.Undefined(iso))
	return v
}

func throwSandboxError(info *v8.FunctionCallbackInfo, err error) *v8.Value {
	iso := info.Context().Isolate()
	se := toSandboxError(err)
	obj, buildErr := goToJS(info.Context(), map[string]any{
		"name":    se.Name,
		"message": se.Message,
		"code":    string(se.Code),
	})
	if buildErr != nil {
		iso.ThrowException(mustStringValue(iso, se.Error()))
		return nil
	}
	iso.ThrowException(obj)
	return nil
}

func mustStringValue(iso *v8.Isolate, s string) *v8.Value {
	v, _ := v8.NewValue(iso, s)
	return v
}

func toSandboxError(err error) *sandboxerr.SandboxError {
	if se, ok := err.(*sandboxerr.SandboxError); ok {
		return se
	}
	return sandboxerr.Wrap(sandboxerr.CodeEnclaveError, "internal error", err)
}

func jsErrorToSandboxError(args []*v8.Value) *sandboxerr.SandboxError {
	if len(args) == 0 {
		return sandboxerr.New(sandboxerr.CodeExecutionError, "unknown error")
	}
	converted, err := jsToGo(args[0])
	if err != nil {
		return sandboxerr.New(sandboxerr.CodeExecutionError, args[0].String())
	}
	if m, ok := converted.(map[string]any); ok {
		msg, _ := m["message"].(string)
		name, _ := m["name"].(string)
		stack, _ := m["stack"].(string)
		code := sandboxerr.CodeExecutionError
		if name == securityViolationErrorName {
			code = sandboxerr.CodeSecurityViolation
		}
		se := sandboxerr.New(code, msg)
		se.Name = name
		if stack != "" {
			se = se.WithStack(sandboxerr.RedactStack(stack))
		}
		return se
	}
	return sandboxerr.New(sandboxerr.CodeExecutionError, args[0].String())
}

// jsToGo recursively converts a v8go Value into a plain Go value
// (map[string]any, []any, string, float64, bool, nil) suitable for
// internal/domain/sanitize to walk.
func jsToGo(v *v8.Value) (any, error) {
	switch {
	case v == nil || v.IsNull() || v.IsUndefined():
		return nil, nil
	case v.IsString():
		return v.String(), nil
	case v.IsBoolean():
		return v.Boolean(), nil
	case v.IsNumber():
		return v.Number(), nil
	case v.IsFunction():
		return sanitize.Func{}, nil
	case v.IsArray():
		obj, err := v.AsObject()
		if err != nil {
			return nil, err
		}
		length, err := obj.Get("length")
		if err != nil {
			return nil, err
		}
		n := int(length.Integer())
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			elem, err := obj.GetIdx(uint32(i))
			if err != nil {
				return nil, err
			}
			converted, err := jsToGo(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case v.IsObject():
		obj, err := v.AsObject()
		if err != nil {
			return nil, err
		}
		keys := obj.GetPropertyNames()
		out := make(map[string]any, len(keys))
		for _, key := range keys {
			val, err := obj.Get(key)
			if err != nil {
				continue
			}
			converted, err := jsToGo(val)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	default:
		return v.String(), nil
	}
}

// goToJS builds a v8go Value from a plain Go value, the mirror of
// jsToGo. Functions and other non-data values are rejected: nothing the
// host hands back across the boundary should ever carry a callable.
func goToJS(ctx *v8.Context, v any) (*v8.Value, error) {
	iso := ctx.Isolate()
	switch val := v.(type) {
	case nil:
		return v8.NewValue(iso, v8.Null(iso))
	case string:
		return v8.NewValue(iso, val)
	case bool:
		return v8.NewValue(iso, val)
	case float64:
		return v8.NewValue(iso, val)
	case int:
		return v8.NewValue(iso, float64(val))
	case int64:
		return v8.NewValue(iso, float64(val))
	case []any:
		arr, err := v8.NewValue(iso, v8.Undefined(iso))
		if err != nil {
			return nil, err
		}
		obj, err := ctx.RunScript("[]", "<goToJS array>")
		if err != nil {
			return arr, err
		}
		arrObj, err := obj.AsObject()
		if err != nil {
			return nil, err
		}
		for i, item := range val {
			jsItem, err := goToJS(ctx, item)
			if err != nil {
				return nil, err
			}
			if err := arrObj.SetIdx(uint32(i), jsItem); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case map[string]any:
		obj, err := ctx.RunScript("({})", "<goToJS object>")
		if err != nil {
			return nil, err
		}
		mapObj, err := obj.AsObject()
		if err != nil {
			return nil, err
		}
		for key, item := range val {
			jsItem, err := goToJS(ctx, item)
			if err != nil {
				return nil, err
			}
			if err := mapObj.Set(key, jsItem); err != nil {
				return nil, err
			}
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("cannot marshal %T across sandbox boundary", v)
	}
}
