package validation

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"

	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
)

// Options mirrors the embedder-facing `validate(source, options?)` call
// shape from §4.1: a preset plus any embedder-declared custom globals.
type Options struct {
	Preset        policy.Preset
	CustomGlobals []string
}

// Validator parses candidate source and walks it with the preset's rule
// list. A Validator holds no per-run state; it is safe for concurrent use
// across goroutines, matching §5's "no mutable global state spans
// sessions."
type Validator struct {
	rules []Rule

	cacheMu sync.Mutex
	cache   map[uint64]Result
}

// New constructs a Validator over the given rule list (DefaultRules()
// unless the caller has a reason to compose a different set).
func New(rules []Rule) *Validator {
	return &Validator{rules: rules, cache: make(map[uint64]Result)}
}

// Validate parses source and applies every rule's visitor to every
// matching node. It never panics on well-formed input: parse failures
// surface as Result.ParseError, not as a Go error return — matching
// §4.1's "the validator never throws for well-formed input."
//
// Identical (source, preset-level, custom-globals) triples are served from
// an in-memory cache keyed by an xxhash digest of the normalized input, the
// same keying technique the teacher's policy service uses for its
// compiled-rule cache, since re-parsing and re-walking unchanged guest
// source on every call is pure overhead.
func (v *Validator) Validate(source string, opts Options) Result {
	key := cacheKey(source, opts)
	v.cacheMu.Lock()
	if cached, ok := v.cache[key]; ok {
		v.cacheMu.Unlock()
		return cached
	}
	v.cacheMu.Unlock()

	result := v.validateUncached(source, opts)

	v.cacheMu.Lock()
	v.cache[key] = result
	v.cacheMu.Unlock()
	return result
}

func cacheKey(source string, opts Options) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(source)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(string(opts.Preset.Level))
	for _, g := range opts.CustomGlobals {
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(g)
	}
	return h.Sum64()
}

func (v *Validator) validateUncached(source string, opts Options) Result {
	if len(source) > opts.Preset.MaxInputSize {
		return Result{Valid: false, ParseError: "source exceeds max_input_size (" + strconv.Itoa(opts.Preset.MaxInputSize) + " bytes)"}
	}
	for i := 0; i < len(source); i++ {
		if source[i] == 0 {
			return Result{Valid: false, ParseError: "source contains a NUL byte"}
		}
	}

	program, err := parser.ParseFile(file.NewFileSet(), "", source, 0)
	if err != nil {
		return Result{Valid: false, ParseError: err.Error()}
	}

	ctx := newRuleContext(opts.Preset, opts.CustomGlobals)
	v.walkWithRules(program, ctx)

	result := Result{Issues: ctx.Issues}
	result.Valid = true
	for _, issue := range ctx.Issues {
		if issue.Severity == SeverityError {
			result.Valid = false
			break
		}
	}
	return result
}

// walkWithRules performs one traversal of the program, running every
// rule's Visit against every node visited — §4.1's "Rule order is fixed by
// the preset; issues are collected in visit order" without re-walking the
// tree once per rule.
func (v *Validator) walkWithRules(program *ast.Program, ctx *RuleContext) {
	Walk(program, func(node ast.Node) bool {
		for _, rule := range v.rules {
			rule.Visit(ctx, node)
		}
		return true
	})
}
