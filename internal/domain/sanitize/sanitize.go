// Package sanitize implements the deep-sanitization pass §4.3.5 requires
// at every host/guest boundary: tool-call arguments, tool-call return
// values, and thrown error data are all cloned through Sanitize before
// they cross.
package sanitize

import (
	"reflect"
	"strings"

	"github.com/agentscript/sentinel-enclave/internal/domain/sandboxerr"
)

// Options configures one sanitization pass.
type Options struct {
	// MaxDepth bounds recursion (policy max_sanitize_depth).
	MaxDepth int
	// MaxProperties bounds the total number of object/array entries
	// visited across the whole tree (policy max_sanitize_properties).
	MaxProperties int
	// ForToolArgs selects the §4.3.5 "removed vs. raises" branch for
	// functions, symbols, and host-originating values: true strips them
	// silently (outbound tool-call arguments), false raises
	// SECURITY_VIOLATION (values returning from the sandbox to the host
	// must not carry them at all).
	ForToolArgs bool
}

// Func is the marker sanitize uses in place of a Go representation of a
// JS function value; the v8sandbox adapter substitutes this when it
// detects a function crossing the boundary so the rest of the pipeline
// never special-cases *v8go types.
type Func struct{}

// HostValue marks a value that originated from the host runtime itself
// (not user data) and must never be echoed back across the boundary.
type HostValue struct{ Description string }

type state struct {
	opts       Options
	properties int
	seen       map[uintptr]bool
}

// Sanitize deep-clones v, applying every §4.3.5 rule, and returns a
// sandboxerr-typed error on a depth/property-count breach or (outside
// ForToolArgs) on encountering a function/symbol/host value.
func Sanitize(v any, opts Options) (any, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 20
	}
	s := &state{opts: opts, seen: make(map[uintptr]bool)}
	return s.walk(v, 0)
}

func (s *state) walk(v any, depth int) (any, error) {
	if depth > s.opts.MaxDepth {
		return nil, sandboxerr.New(sandboxerr.CodeSecurityViolation, "sanitization exceeds maximum depth")
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return sanitizeString(val)
	case bool, float64, int, int64:
		return val, nil

	case Func, *Func:
		return s.rejectOrStrip("function values are not permitted across the sandbox boundary")
	case HostValue, *HostValue:
		return s.rejectOrStrip("host-originating values are not permitted across the sandbox boundary")

	case map[string]any:
		return s.walkMap(val, depth)
	case []any:
		return s.walkSlice(val, depth)

	default:
		return s.walkReflect(v, depth)
	}
}

func (s *state) rejectOrStrip(message string) (any, error) {
	if s.opts.ForToolArgs {
		return nil, nil
	}
	return nil, sandboxerr.New(sandboxerr.CodeSecurityViolation, message)
}

func sanitizeString(str string) (string, error) {
	if strings.IndexByte(str, 0) >= 0 {
		return "", sandboxerr.New(sandboxerr.CodeSecurityViolation, "string argument contains a NUL byte")
	}
	return str, nil
}

// walkMap clones m, accounting for the §4.3.5 "__proto__ own-property
// keys of object literals are copied as ordinary data properties; no
// prototype is installed" rule: since the input is already a plain Go
// map (the prototype chain never survives the JS->Go boundary crossing
// that produced m), that invariant holds automatically — this walk only
// needs to make sure a literal "__proto__" key is copied like any other
// string key, never treated specially.
func (s *state) walkMap(m map[string]any, depth int) (any, error) {
	ptr := reflect.ValueOf(m).Pointer()
	if s.seen[ptr] {
		return "[Circular]", nil
	}
	s.seen[ptr] = true
	defer delete(s.seen, ptr)

	out := make(map[string]any, len(m))
	for k, v := range m {
		if err := s.countProperty(); err != nil {
			return nil, err
		}
		sanitized, err := s.walk(v, depth+1)
		if err != nil {
			return nil, err
		}
		out[k] = sanitized
	}
	return out, nil
}

func (s *state) walkSlice(arr []any, depth int) (any, error) {
	if len(arr) > 0 {
		ptr := reflect.ValueOf(arr).Pointer()
		if s.seen[ptr] {
			return "[Circular]", nil
		}
		s.seen[ptr] = true
		defer delete(s.seen, ptr)
	}

	out := make([]any, len(arr))
	for i, v := range arr {
		if err := s.countProperty(); err != nil {
			return nil, err
		}
		sanitized, err := s.walk(v, depth+1)
		if err != nil {
			return nil, err
		}
		out[i] = sanitized
	}
	return out, nil
}

// walkReflect handles numeric kinds walk's direct type switch
// misses (int32, float32, etc. produced by whichever marshaling path
// built the tree) by passing them through unchanged, matching §4.3.5's
// "numbers, booleans, nil pass through unchanged."
func (s *state) walkReflect(v any, depth int) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Bool:
		return v, nil
	case reflect.Func:
		return s.rejectOrStrip("function values are not permitted across the sandbox boundary")
	default:
		return v, nil
	}
}

func (s *state) countProperty() error {
	s.properties++
	if s.opts.MaxProperties > 0 && s.properties > s.opts.MaxProperties {
		return sandboxerr.New(sandboxerr.CodeSecurityViolation, "sanitization exceeds too many properties")
	}
	return nil
}
