// Package cel adapts google/cel-go into the policy.NameMatcher port. It
// compiles a small set of glob or CEL patterns over a single "name"
// variable, evaluated before a tool call is allowed to reach the handler.
package cel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/agentscript/sentinel-enclave/internal/domain/policy"
)

// maxExpressionLength caps a single pattern's length.
const maxExpressionLength = 1024

// maxCostBudget limits CEL evaluation cost to prevent expensive expressions.
const maxCostBudget = 100_000

// maxNestingDepth caps parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// Matcher implements policy.NameMatcher by OR-ing a list of compiled
// patterns: a name matches if any pattern matches. Each pattern is either
// a plain glob (no CEL operators) evaluated via filepath.Match, or a full
// CEL boolean expression over the "name" variable.
type Matcher struct {
	env      *cel.Env
	programs []cel.Program
	globs    []string
}

// NewMatcher compiles patterns into a Matcher. Returns an error if any
// pattern is too long, too deeply nested, or fails to compile as CEL.
func NewMatcher(patterns []string) (*Matcher, error) {
	env, err := newNameEnv()
	if err != nil {
		return nil, fmt.Errorf("operation policy: %w", err)
	}

	m := &Matcher{env: env}
	for _, p := range patterns {
		if err := validatePattern(p); err != nil {
			return nil, fmt.Errorf("operation policy pattern %q: %w", p, err)
		}
		if isPlainGlob(p) {
			m.globs = append(m.globs, p)
			continue
		}
		prg, err := compile(env, p)
		if err != nil {
			return nil, fmt.Errorf("operation policy pattern %q: %w", p, err)
		}
		m.programs = append(m.programs, prg)
	}
	return m, nil
}

// Match reports whether name satisfies any compiled pattern.
func (m *Matcher) Match(name string) (bool, error) {
	for _, g := range m.globs {
		if matched, _ := filepath.Match(g, name); matched {
			return true, nil
		}
	}
	for _, prg := range m.programs {
		ok, err := evaluate(prg, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

var _ policy.NameMatcher = (*Matcher)(nil)

func newNameEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p, _ := pattern.Value().(string)
					n, _ := name.Value().(string)
					matched, _ := filepath.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),
	)
}

func compile(env *cel.Env, expression string) (cel.Program, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

func evaluate(prg cel.Program, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, map[string]any{"name": name})
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return b, nil
}

func validatePattern(expr string) error {
	if expr == "" {
		return errors.New("pattern is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("pattern too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	return validateNesting(expr)
}

func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("pattern nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// isPlainGlob reports whether p contains no CEL operators and should be
// treated as a bare filepath.Match glob rather than compiled as CEL. This
// lets config authors write "fs.*" instead of the more verbose
// `glob("fs.*", name)`.
func isPlainGlob(p string) bool {
	for _, ch := range p {
		switch ch {
		case '(', ')', '&', '|', '!', '=', '<', '>', ' ':
			return false
		}
	}
	return true
}
